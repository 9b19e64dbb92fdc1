package shifts

import (
	"context"
	"errors"
)

// EventHandler reacts to committed shift lifecycle changes.
type EventHandler interface {
	HandleShiftOpened(ctx context.Context, shift Shift) error
	HandleTrayMoved(ctx context.Context, direction Direction, result TrayResult) error
	HandleShiftClosed(ctx context.Context, shift Shift) error
	HandleShiftsRemoved(ctx context.Context, count int64) error
}

// EventHandlers fans events out to every handler and joins their errors.
type EventHandlers []EventHandler

func (hs EventHandlers) each(fn func(EventHandler) error) error {
	var errs []error
	for _, h := range hs {
		if h == nil {
			continue
		}
		if err := fn(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleShiftOpened implements EventHandler.
func (hs EventHandlers) HandleShiftOpened(ctx context.Context, shift Shift) error {
	return hs.each(func(h EventHandler) error { return h.HandleShiftOpened(ctx, shift) })
}

// HandleTrayMoved implements EventHandler.
func (hs EventHandlers) HandleTrayMoved(ctx context.Context, direction Direction, result TrayResult) error {
	return hs.each(func(h EventHandler) error { return h.HandleTrayMoved(ctx, direction, result) })
}

// HandleShiftClosed implements EventHandler.
func (hs EventHandlers) HandleShiftClosed(ctx context.Context, shift Shift) error {
	return hs.each(func(h EventHandler) error { return h.HandleShiftClosed(ctx, shift) })
}

// HandleShiftsRemoved implements EventHandler.
func (hs EventHandlers) HandleShiftsRemoved(ctx context.Context, count int64) error {
	return hs.each(func(h EventHandler) error { return h.HandleShiftsRemoved(ctx, count) })
}
