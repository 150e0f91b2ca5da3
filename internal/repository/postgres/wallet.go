package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/models"
)

type WalletRepo struct {
	DB DBTX
}

const walletColumns = `id, user_id, balance, withdrawn, available_at`

const getOrCreateWallet = `-- name: GetOrCreateWallet
WITH new_wallet AS (
	INSERT INTO wallets (id, user_id, balance, withdrawn, available_at)
	VALUES ($1, $2, 0, 0, now())
	ON CONFLICT (user_id) DO NOTHING
	RETURNING id, user_id, balance, withdrawn, available_at
)
SELECT * FROM new_wallet
UNION
SELECT id, user_id, balance, withdrawn, available_at FROM wallets WHERE user_id = $2
`

func (r *WalletRepo) GetOrCreateWallet(ctx context.Context, userID uuid.UUID) (models.WalletAccount, error) {
	rows, _ := r.DB.Query(ctx, getOrCreateWallet, uuid.New(), userID)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)
	if err != nil {
		return wallet, fmt.Errorf("db error: %w", err)
	}

	return wallet, nil
}

const getWallet = `-- name: GetWallet
SELECT ` + walletColumns + ` FROM wallets
WHERE user_id = $1
`

func (r *WalletRepo) GetWallet(ctx context.Context, userID uuid.UUID) (models.WalletAccount, error) {
	rows, _ := r.DB.Query(ctx, getWallet, userID)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

// Maturity only ever moves forward: crediting never releases funds earlier
// than an already scheduled availability.
const creditWallet = `-- name: Credit
UPDATE wallets
SET balance = balance + $2,
    available_at = GREATEST(available_at, $3)
WHERE user_id = $1
RETURNING ` + walletColumns

func (r *WalletRepo) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, availableAt time.Time) (models.WalletAccount, error) {
	rows, _ := r.DB.Query(ctx, creditWallet, userID, amount, availableAt)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

const withdrawFromWallet = `-- name: Withdraw
UPDATE wallets
SET balance = balance - $2,
    withdrawn = withdrawn + $2
WHERE user_id = $1 AND balance >= $2
RETURNING ` + walletColumns

func (r *WalletRepo) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.WalletAccount, error) {
	rows, _ := r.DB.Query(ctx, withdrawFromWallet, userID, amount)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Either the wallet does not exist or the balance guard failed
		if _, getErr := r.GetWallet(ctx, userID); getErr != nil {
			return wallet, getErr
		}
		return wallet, apperrors.ErrBalanceInsufficient
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

func rowToWallet(row pgx.CollectableRow) (models.WalletAccount, error) {
	var w models.WalletAccount
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.Withdrawn, &w.AvailableAt)
	return w, err
}
