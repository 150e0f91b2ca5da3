package finance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// User-visible messages rendered directly by the withdrawal handler
const (
	MsgInvalidInput   = "Invalid numeric input provided."
	MsgNonPositive    = "Withdrawal amount must be greater than zero."
	MsgExceedsBalance = "Withdrawal amount exceeds available balance."
)

// Policy holds the withdrawal constants supplied by configuration.
// WithdrawalCharge is a fraction of the gross amount, e.g. 0.02 for 2%.
type Policy struct {
	MinWithdrawal    decimal.Decimal
	MaxWithdrawal    decimal.Decimal
	WithdrawalCharge decimal.Decimal
}

// Result of a withdrawal evaluation.
//
// Eligible and Message are independent: an amount below MinWithdrawal is
// ineligible but carries no message and still gets a computed Net. Only the
// non-positive and exceeds-balance cases set a message. Callers must not
// treat an empty Message as eligibility.
type Result struct {
	Net      decimal.Decimal
	Eligible bool
	Max      decimal.Decimal
	Message  string
}

// EvaluateRaw parses amounts that arrive as strings from the upstream form
// and evaluates them. Any unparsable input yields the invalid-input result.
func EvaluateRaw(requestedRaw string, balanceRaw string, p Policy) Result {
	requested, errReq := decimal.NewFromString(strings.TrimSpace(requestedRaw))
	balance, errBal := decimal.NewFromString(strings.TrimSpace(balanceRaw))

	if errReq != nil || errBal != nil {
		return Result{
			Net:      decimal.Zero,
			Eligible: false,
			Max:      p.MaxWithdrawal,
			Message:  MsgInvalidInput,
		}
	}

	return Evaluate(requested, balance, p)
}

// Evaluate decides withdrawal eligibility and computes the net payout.
// Pure and deterministic: no side effects, no I/O.
//
// Eligibility is checked against the requested (gross) amount, never the net
// amount or the balance, so thresholds can't be bypassed.
// Max is min(balance, MaxWithdrawal) on every non-exceptional path.
func Evaluate(requested decimal.Decimal, balance decimal.Decimal, p Policy) Result {
	max := decimal.Min(balance, p.MaxWithdrawal)

	switch {
	case !requested.IsPositive():
		return Result{Net: decimal.Zero, Eligible: false, Max: max, Message: MsgNonPositive}

	case requested.GreaterThan(balance):
		return Result{Net: decimal.Zero, Eligible: false, Max: max, Message: MsgExceedsBalance}
	}

	net := requested.Mul(decimal.NewFromInt(1).Sub(p.WithdrawalCharge))
	eligible := requested.GreaterThanOrEqual(p.MinWithdrawal) && requested.LessThanOrEqual(p.MaxWithdrawal)

	return Result{Net: net, Eligible: eligible, Max: max}
}
