package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrPlanNotFound = errors.New("plan not found")

	ErrPositionNotFound = errors.New("position not found")
	ErrPositionSettled  = errors.New("position already settled")
	ErrPositionOutdated = errors.New("position cursor outdated")
	ErrTickOutOfRange   = errors.New("tick out of range")

	ErrWalletNotFound      = errors.New("wallet not found")
	ErrFundsNotMatured     = errors.New("wallet funds not matured")
	ErrBalanceInsufficient = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")

	ErrRewardNotFound        = errors.New("referral reward not found")
	ErrRewardNotWithdrawable = errors.New("referral reward not withdrawable")
)
