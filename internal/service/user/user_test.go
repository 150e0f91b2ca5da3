package user

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/repository/postgres"
	"github.com/vkarpenko/gpushare/internal/testutil"
)

func TestUserService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withService := func(t *testing.T, fn func(s *Service)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(NewService(storage.User()))
		})
	}

	t.Run("register ok", func(t *testing.T) {
		withService(t, func(s *Service) {
			user, err := s.Register(t.Context(), "test-user")

			require.NoError(t, err)
			require.NotEmpty(t, user.ID)
			require.Equal(t, "test-user", user.Username)
			require.NotZero(t, user.CreatedAt)
		})
	})

	t.Run("register duplicate fail", func(t *testing.T) {
		withService(t, func(s *Service) {
			_, err := s.Register(t.Context(), "test-user")
			require.NoError(t, err)

			_, err = s.Register(t.Context(), "test-user")
			require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})
	})

	t.Run("get user ok", func(t *testing.T) {
		withService(t, func(s *Service) {
			created, err := s.Register(t.Context(), "test-user")
			require.NoError(t, err)

			user, err := s.GetUser(t.Context(), created.ID)

			require.NoError(t, err)
			require.Equal(t, created.ID, user.ID)
			require.Equal(t, created.Username, user.Username)
		})
	})

	t.Run("get unknown user fail", func(t *testing.T) {
		withService(t, func(s *Service) {
			_, err := s.GetUser(t.Context(), uuid.New())

			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})
}
