package gui

import (
	"errors"
	"image"

	"snapzone/src/screenshot"
)

// ErrCancelled is the outcome of a gesture aborted with Escape or by closing the overlay.
var ErrCancelled = errors.New("region selection cancelled")

// Gesture tracks one press-drag-release on the overlay. Points are absolute
// screen coordinates. A Gesture yields exactly one outcome; later input is ignored.
type Gesture struct {
	start    image.Point
	current  image.Point
	pressed  bool
	done     bool
	result   screenshot.Rectangle
	err      error
	onResult func(screenshot.Rectangle, error)
}

// NewGesture returns a gesture that calls onResult once with either a
// normalized rectangle or an error (ErrCancelled or screenshot.ErrTooSmall).
func NewGesture(onResult func(screenshot.Rectangle, error)) *Gesture {
	return &Gesture{onResult: onResult}
}

// Press anchors the selection.
func (g *Gesture) Press(p image.Point) {
	if g.done {
		return
	}
	g.start, g.current, g.pressed = p, p, true
}

// Drag moves the opposite corner. It is ignored before Press.
func (g *Gesture) Drag(p image.Point) {
	if g.done || !g.pressed {
		return
	}
	g.current = p
}

// Release finishes the gesture at p.
func (g *Gesture) Release(p image.Point) {
	if g.done || !g.pressed {
		return
	}
	g.current = p
	r, err := screenshot.NewRectangle(g.start.X, g.start.Y, p.X, p.Y)
	g.finish(r, err)
}

// Cancel ends the gesture without a region.
func (g *Gesture) Cancel() {
	if g.done {
		return
	}
	g.finish(screenshot.Rectangle{}, ErrCancelled)
}

// Outline returns the live selection in normalized form, for drawing.
// ok is false before the first press.
func (g *Gesture) Outline() (image.Rectangle, bool) {
	if !g.pressed {
		return image.Rectangle{}, false
	}
	return image.Rectangle{Min: g.start, Max: g.current}.Canon(), true
}

func (g *Gesture) Done() bool { return g.done }

// Result returns the outcome once Done is true.
func (g *Gesture) Result() (screenshot.Rectangle, error) { return g.result, g.err }

func (g *Gesture) finish(r screenshot.Rectangle, err error) {
	g.done = true
	g.result, g.err = r, err
	if g.onResult != nil {
		g.onResult(r, err)
	}
}
