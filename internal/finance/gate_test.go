package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vkarpenko/gpushare/internal/models"
)

func TestAvailable(t *testing.T) {
	availableAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	wallet := models.WalletAccount{AvailableAt: availableAt}

	tests := []struct {
		name     string
		now      time.Time
		expected bool
	}{
		{"before maturity", availableAt.Add(-time.Second), false},
		{"exactly at maturity", availableAt, true},
		{"after maturity", availableAt.Add(time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Available(wallet, tt.now))
		})
	}
}
