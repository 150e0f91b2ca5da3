package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/eventbus"
	"github.com/vkarpenko/gpushare/internal/finance"
	"github.com/vkarpenko/gpushare/internal/logger"
	"github.com/vkarpenko/gpushare/internal/models"
	"github.com/vkarpenko/gpushare/internal/repository"
)

const (
	defaultMaturityDelay = 72 * time.Hour
	creditTimeout        = 10 * time.Second
)

type Config struct {
	// Withdrawal policy constants, supplied by configuration
	Policy finance.Policy

	// How long a cycle payout stays locked after crediting
	MaturityDelay time.Duration
}

type Service struct {
	policy        finance.Policy
	maturityDelay time.Duration

	storage repository.Storage
	logger  logger.Logger

	// Injectable clock for maturity checks in tests
	now func() time.Time
}

func NewService(cfg Config, storage repository.Storage, l logger.Logger) *Service {
	if cfg.MaturityDelay <= 0 {
		cfg.MaturityDelay = defaultMaturityDelay
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		policy:        cfg.Policy,
		maturityDelay: cfg.MaturityDelay,
		storage:       storage,
		logger:        l,
		now:           time.Now,
	}
}

func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (models.WalletAccount, error) {
	return s.storage.Wallet().GetOrCreateWallet(ctx, userID)
}

// Withdraw evaluates the requested amount against the policy and, when
// eligible, debits the gross amount in one transaction. The returned Result
// carries the user-visible message for ineligible requests; err is reserved
// for maturity gating and infrastructure failures.
func (s *Service) Withdraw(ctx context.Context, userID uuid.UUID, amountRaw string) (models.WalletAccount, finance.Result, error) {
	var wallet models.WalletAccount
	var result finance.Result

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		w, err := st.Wallet().GetOrCreateWallet(ctx, userID)
		if err != nil {
			return err
		}
		wallet = w

		if !finance.Available(w, s.now()) {
			return fmt.Errorf("%w: available at %s", apperrors.ErrFundsNotMatured, w.AvailableAt.Format(time.RFC3339))
		}

		result = finance.EvaluateRaw(amountRaw, w.Balance.String(), s.policy)
		if !result.Eligible {
			// Nothing to debit, the result explains why
			return nil
		}

		requested, err := decimal.NewFromString(amountRaw)
		if err != nil {
			// Eligible implies the amount parsed; guard anyway
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidAmount, err)
		}

		wallet, err = st.Wallet().Withdraw(ctx, userID, requested)
		return err
	})
	if err != nil {
		return wallet, result, err
	}

	if result.Eligible {
		s.logger.Info("Withdrawal processed",
			"user_id", userID,
			"net", result.Net,
			"balance", wallet.Balance,
		)
	}

	return wallet, result, nil
}

// CreditPayout adds a cycle payout to the user's wallet. The funds mature
// after the configured delay.
func (s *Service) CreditPayout(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.WalletAccount, error) {
	if amount.IsNegative() {
		return models.WalletAccount{}, fmt.Errorf("%w: payout must not be negative", apperrors.ErrInvalidAmount)
	}

	var wallet models.WalletAccount
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		if _, err := st.Wallet().GetOrCreateWallet(ctx, userID); err != nil {
			return err
		}

		w, err := st.Wallet().Credit(ctx, userID, amount, s.now().Add(s.maturityDelay))
		if err != nil {
			return err
		}

		wallet = w
		return nil
	})

	return wallet, err
}

// HandleCycleEnded credits the position owner's wallet with the final cycle
// payout. Subscribe it to the event bus for eventbus.KindCycleEnded.
func (s *Service) HandleCycleEnded(event eventbus.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), creditTimeout)
	defer cancel()

	pos, err := s.storage.Position().GetPosition(ctx, event.PositionID)
	if err != nil {
		return fmt.Errorf("can't resolve position for cycle payout. Err: %w", err)
	}

	wallet, err := s.CreditPayout(ctx, pos.UserID, event.CyclePayout)
	if err != nil {
		return fmt.Errorf("can't credit cycle payout. Err: %w", err)
	}

	s.logger.Info("Cycle payout credited",
		"position_id", pos.ID,
		"user_id", pos.UserID,
		"payout", event.CyclePayout,
		"available_at", wallet.AvailableAt,
	)

	return nil
}
