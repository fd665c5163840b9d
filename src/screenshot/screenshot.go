package screenshot

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// MinSide is the smallest accepted width and height of a capture rectangle, in pixels.
const MinSide = 10

// ErrTooSmall is returned for rectangles narrower or shorter than MinSide.
var ErrTooSmall = errors.New("selection too small")

// Rectangle is an absolute screen region. Use NewRectangle to build one;
// the zero value means "no region".
type Rectangle struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// NewRectangle normalizes two corners so that X1<X2 and Y1<Y2 and rejects
// anything under MinSide x MinSide.
func NewRectangle(x1, y1, x2, y2 int) (Rectangle, error) {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	r := Rectangle{X1: x1, Y1: y1, X2: x2, Y2: y2}
	if r.Width() < MinSide || r.Height() < MinSide {
		return Rectangle{}, fmt.Errorf("%w: %dx%d (minimum %dx%d pixels)", ErrTooSmall, r.Width(), r.Height(), MinSide, MinSide)
	}
	return r, nil
}

func (r Rectangle) Width() int  { return r.X2 - r.X1 }
func (r Rectangle) Height() int { return r.Y2 - r.Y1 }

// Valid reports whether r satisfies the ordering and minimum size invariants.
func (r Rectangle) Valid() bool {
	return r.X1 < r.X2 && r.Y1 < r.Y2 && r.Width() >= MinSide && r.Height() >= MinSide
}

// IsZero reports whether no region has been set.
func (r Rectangle) IsZero() bool { return r == Rectangle{} }

// Bounds converts r into an image.Rectangle.
func (r Rectangle) Bounds() image.Rectangle { return image.Rect(r.X1, r.Y1, r.X2, r.Y2) }

// Size renders the region the way the settings window labels it.
func (r Rectangle) Size() string { return fmt.Sprintf("%dx%d px", r.Width(), r.Height()) }

func (r Rectangle) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", r.X1, r.Y1, r.X2, r.Y2)
}

// Grabber is the host capture primitive. Implementations are synchronous and may fail.
type Grabber interface {
	Grab(r Rectangle) (image.Image, error)
}

// ScreenGrabber grabs pixels through kbinani/screenshot.
type ScreenGrabber struct{}

func (ScreenGrabber) Grab(r Rectangle) (image.Image, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid region %s", r)
	}
	img, err := screenshot.CaptureRect(r.Bounds())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return img, nil
}

// CapturePrimary captures the whole primary display; the region overlay uses
// it as its frozen background.
func CapturePrimary() (*image.RGBA, image.Rectangle, error) {
	bounds, err := GetDisplayBounds()
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("failed to capture display: %w", err)
	}
	return img, bounds, nil
}

// GetDisplayBounds returns the bounds of the primary display
func GetDisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	return screenshot.GetDisplayBounds(0), nil
}
