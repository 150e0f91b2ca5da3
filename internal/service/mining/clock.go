package mining

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/apperrors"
	"github.com/vkarpenko/gpushare/internal/eventbus"
	"github.com/vkarpenko/gpushare/internal/models"
)

// Days are always 24 hours; month length is policy defined.
const (
	HoursPerDay         = 24
	defaultDaysPerMonth = 30
)

type Config struct {
	DaysPerMonth int
}

func (c Config) daysPerMonth() int {
	if c.DaysPerMonth <= 0 {
		return defaultDaysPerMonth
	}
	return c.DaysPerMonth
}

// HourlyProfit is the profit of one hourly tick: hash rate of the owned
// fraction times the reward rate per GH-hour supplied by the rate feed.
func HourlyProfit(pos models.MiningPosition, rate decimal.Decimal) decimal.Decimal {
	return pos.HashRate.Mul(pos.GPUFraction).Mul(rate)
}

// SnapshotAt computes the snapshot of a single tick. It is a pure function
// of (position, month, day, hour, rate): re-running the same tick with the
// same inputs reproduces the same snapshot.
//
// Fails with apperrors.ErrTickOutOfRange when the tick coordinates fall
// outside the position's cycle, and with apperrors.ErrInvalidAmount on a
// negative rate (accrual is never negative).
func SnapshotAt(cfg Config, pos models.MiningPosition, month, day, hour int, rate decimal.Decimal) (models.AccrualSnapshot, error) {
	var snap models.AccrualSnapshot

	switch {
	case month < 1 || month > pos.CycleMonths:
		return snap, fmt.Errorf("%w: month %d not in [1, %d]", apperrors.ErrTickOutOfRange, month, pos.CycleMonths)
	case day < 1 || day > cfg.daysPerMonth():
		return snap, fmt.Errorf("%w: day %d not in [1, %d]", apperrors.ErrTickOutOfRange, day, cfg.daysPerMonth())
	case hour < 0 || hour >= HoursPerDay:
		return snap, fmt.Errorf("%w: hour %d not in [0, %d]", apperrors.ErrTickOutOfRange, hour, HoursPerDay-1)
	case rate.IsNegative():
		return snap, fmt.Errorf("%w: negative reward rate %s", apperrors.ErrInvalidAmount, rate)
	}

	return models.AccrualSnapshot{
		PositionID: pos.ID,
		PlanID:     pos.PlanID,
		Month:      month,
		Day:        day,
		Hour:       hour,
		Profit:     HourlyProfit(pos, rate),
	}, nil
}

// TickResult is everything one tick produced: the hourly snapshot, which
// boundaries closed, their totals and the cursor of the next tick. The
// accrual job persists positions from it.
type TickResult struct {
	Snapshot models.AccrualSnapshot

	DayClosed   bool
	MonthClosed bool
	CycleEnded  bool

	DayTotal    decimal.Decimal
	MonthTotal  decimal.Decimal
	CyclePayout decimal.Decimal

	NextMonth int
	NextDay   int
	NextHour  int
}

// Clock advances a mining position through simulated hourly ticks and
// publishes lifecycle events. It is not safe for concurrent use: the caller
// serializes ticks per position, ticks form a total order.
type Clock struct {
	cfg Config
	pos models.MiningPosition
	bus *eventbus.Bus

	month int
	day   int
	hour  int

	dayTotal   decimal.Decimal
	monthTotal decimal.Decimal
	cycleTotal decimal.Decimal
}

type ClockOption func(*Clock)

// WithRunningTotals seeds the day/month/cycle accumulators. Used when a
// clock is rebuilt mid-boundary from persisted snapshots, so boundary events
// still carry full totals.
func WithRunningTotals(day, month, cycle decimal.Decimal) ClockOption {
	return func(c *Clock) {
		c.dayTotal = day
		c.monthTotal = month
		c.cycleTotal = cycle
	}
}

// NewClock builds a clock positioned at the position's persisted cursor.
// A zero cursor means the position has never ticked and starts at month 1,
// day 1, hour 0.
func NewClock(cfg Config, pos models.MiningPosition, bus *eventbus.Bus, opts ...ClockOption) *Clock {
	c := &Clock{
		cfg:   cfg,
		pos:   pos,
		bus:   bus,
		month: pos.NextMonth,
		day:   pos.NextDay,
		hour:  pos.NextHour,

		dayTotal:   decimal.Zero,
		monthTotal: decimal.Zero,
		cycleTotal: decimal.Zero,
	}

	if c.month == 0 {
		c.month = 1
	}
	if c.day == 0 {
		c.day = 1
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Advance runs exactly one hourly tick without touching the bus: computes
// the snapshot, accumulates day/month/cycle totals and moves the cursor.
// Orchestrators that persist the tick call Advance first and Publish only
// after the persisted state is committed, so subscribers never observe a
// tick that later rolled back.
//
// Fails only on tick validation (nothing happened, state unchanged).
func (c *Clock) Advance(rate decimal.Decimal) (TickResult, error) {
	snap, err := SnapshotAt(c.cfg, c.pos, c.month, c.day, c.hour, rate)
	if err != nil {
		return TickResult{}, err
	}

	c.dayTotal = c.dayTotal.Add(snap.Profit)
	c.monthTotal = c.monthTotal.Add(snap.Profit)
	c.cycleTotal = c.cycleTotal.Add(snap.Profit)

	res := TickResult{Snapshot: snap}

	// Move the cursor and close whatever boundaries this was the last
	// hourly tick of.
	c.hour++
	if c.hour == HoursPerDay {
		c.hour = 0

		res.DayClosed = true
		res.DayTotal = c.dayTotal
		c.dayTotal = decimal.Zero

		c.day++
		if c.day > c.cfg.daysPerMonth() {
			c.day = 1

			res.MonthClosed = true
			res.MonthTotal = c.monthTotal
			c.monthTotal = decimal.Zero

			c.month++
			if c.month > c.pos.CycleMonths {
				res.CycleEnded = true
				res.CyclePayout = c.cycleTotal
			}
		}
	}

	res.NextMonth = c.month
	res.NextDay = c.day
	res.NextHour = c.hour

	return res, nil
}

// Publish emits the hourly event and the boundary events the tick closed,
// in that order. Returns the joined handler failures after all handlers ran.
func (c *Clock) Publish(res TickResult) error {
	if c.bus == nil {
		return nil
	}

	snap := res.Snapshot

	var handlerErrs []error
	publish := func(e eventbus.Event) {
		if err := c.bus.Publish(e); err != nil {
			handlerErrs = append(handlerErrs, err)
		}
	}

	publish(eventbus.Event{
		Kind:       eventbus.KindHourly,
		PositionID: snap.PositionID,
		PlanID:     snap.PlanID,
		Month:      snap.Month,
		Day:        snap.Day,
		Hour:       snap.Hour,
		Profit:     snap.Profit,
	})

	if res.DayClosed {
		publish(eventbus.Event{
			Kind:       eventbus.KindDay,
			PositionID: snap.PositionID,
			PlanID:     snap.PlanID,
			Month:      snap.Month,
			Day:        snap.Day,
			DayTotal:   res.DayTotal,
		})
	}

	if res.MonthClosed {
		publish(eventbus.Event{
			Kind:       eventbus.KindMonth,
			PositionID: snap.PositionID,
			PlanID:     snap.PlanID,
			Month:      snap.Month,
			MonthTotal: res.MonthTotal,
		})
	}

	if res.CycleEnded {
		publish(eventbus.Event{
			Kind:        eventbus.KindCycleEnded,
			PositionID:  snap.PositionID,
			PlanID:      snap.PlanID,
			Month:       snap.Month,
			CyclePayout: res.CyclePayout,
		})
	}

	if len(handlerErrs) > 0 {
		return fmt.Errorf("event handlers failed: %w", errors.Join(handlerErrs...))
	}

	return nil
}

// Tick is Advance followed by Publish: one hourly tick with its events.
//
// The returned error is either a tick validation failure (nothing happened,
// state unchanged) or the joined handler failures reported by the bus after
// all handlers ran (the tick itself completed and the result is valid).
// Check errors.Is(err, apperrors.ErrTickOutOfRange) to tell them apart.
func (c *Clock) Tick(rate decimal.Decimal) (TickResult, error) {
	res, err := c.Advance(rate)
	if err != nil {
		return res, err
	}

	return res, c.Publish(res)
}
