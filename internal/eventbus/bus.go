package eventbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/logger"
)

// Kind tags a mining lifecycle event. Dispatch happens on the tag.
type Kind string

const (
	KindHourly     Kind = "hourly"
	KindDay        Kind = "day"
	KindMonth      Kind = "month"
	KindCycleEnded Kind = "cycleEnded"
)

// Event is the tagged union of mining lifecycle notifications.
// Month/Day/Hour are the coordinates of the tick that fired the event.
// Profit is set for hourly events; DayTotal, MonthTotal and CyclePayout are
// set for their respective boundary events.
type Event struct {
	Kind       Kind
	PositionID uuid.UUID
	PlanID     uuid.UUID

	Month int
	Day   int
	Hour  int

	Profit      decimal.Decimal
	DayTotal    decimal.Decimal
	MonthTotal  decimal.Decimal
	CyclePayout decimal.Decimal
}

type Handler func(Event) error

// Bus is a single-process publish/subscribe keyed by event kind.
// Construct it explicitly and pass it where needed; there is no package
// level instance, so tests never share subscriber state.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	logger   logger.Logger
}

func New(l logger.Logger) *Bus {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Bus{
		handlers: make(map[Kind][]Handler),
		logger:   l,
	}
}

// Subscribe registers a handler for the kind.
// Handlers of one kind run in registration order.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[kind] = append(b.handlers[kind], h)
	b.logger.Debug("Subscribed to event kind", "kind", kind, "handlers", len(b.handlers[kind]))
}

// Publish dispatches the event synchronously to all current subscribers of
// its kind. A failing or panicking handler does not stop the rest; all
// failures are joined and returned once every handler has run. Slow handlers
// block the publisher, offload in the handler if needed.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Kind]...)
	b.mu.RUnlock()

	var errs []error
	for i, h := range handlers {
		if err := b.call(h, event); err != nil {
			b.logger.Error("Event handler failed", "kind", event.Kind, "handler", i, "error", err)
			errs = append(errs, fmt.Errorf("handler %d for %q: %w", i, event.Kind, err))
		}
	}

	return errors.Join(errs...)
}

func (b *Bus) call(h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return h(event)
}
