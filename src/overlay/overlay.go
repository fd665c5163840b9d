package overlay

import (
	"context"
	"errors"
	"fmt"

	"fyne.io/fyne/v2"

	"snapzone/src/gui"
	"snapzone/src/screenshot"
)

var (
	// ErrCancelled is returned when the user aborts the selection or ctx ends.
	ErrCancelled = gui.ErrCancelled
	// ErrTooSmall is returned for drags under the minimum size; it also matches ErrCancelled.
	ErrTooSmall = fmt.Errorf("%w: %w", ErrCancelled, screenshot.ErrTooSmall)
)

// Selector defines a synchronous region-selection API.
// The call is blocking and MUST NOT be invoked from the fyne UI goroutine.
type Selector interface {
	Select(ctx context.Context) (screenshot.Rectangle, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(ctx context.Context) (screenshot.Rectangle, error)

func (f SelectorFunc) Select(ctx context.Context) (screenshot.Rectangle, error) { return f(ctx) }

// NewSelector returns the fyne overlay selector bound to app.
func NewSelector(app fyne.App) Selector {
	return &fyneSelector{app: app}
}

type fyneSelector struct {
	app fyne.App
}

func (s *fyneSelector) Select(ctx context.Context) (screenshot.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return screenshot.Rectangle{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	r, err := gui.StartRegionSelection(ctx, s.app)
	return r, classify(err)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, screenshot.ErrTooSmall):
		return fmt.Errorf("%w (%v)", ErrTooSmall, err)
	default:
		return err
	}
}
