package gui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"snapzone/src/screenshot"
)

var (
	outlineColor = color.NRGBA{R: 0xff, G: 0x30, B: 0x30, A: 0xff}
	dimColor     = color.NRGBA{A: 0x50}
)

const hint = "Drag to select the capture region. Esc or right click cancels."

type selectResult struct {
	rect screenshot.Rectangle
	err  error
}

// StartRegionSelection freezes the primary display, shows it in a full-screen
// overlay and blocks until the user finishes or cancels a drag. It must not be
// called from the fyne UI goroutine. The overlay window is closed on every outcome.
func StartRegionSelection(ctx context.Context, app fyne.App) (screenshot.Rectangle, error) {
	log.Printf("Starting interactive region selection...")

	frozen, bounds, err := screenshot.CapturePrimary()
	if err != nil {
		return screenshot.Rectangle{}, fmt.Errorf("failed to capture screen: %w", err)
	}

	results := make(chan selectResult, 1)
	var (
		win     fyne.Window
		gesture *Gesture
	)
	fyne.Do(func() {
		gesture = NewGesture(func(r screenshot.Rectangle, err error) {
			results <- selectResult{rect: r, err: err}
		})
		win = newOverlayWindow(app)
		surface := newSelectionSurface(win, frozen, bounds.Min, gesture)
		win.SetContent(surface.content())
		win.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
			if ev.Name == fyne.KeyEscape {
				gesture.Cancel()
			}
		})
		win.SetOnClosed(gesture.Cancel)
		win.Show()
		win.RequestFocus()
	})

	var res selectResult
	select {
	case res = <-results:
	case <-ctx.Done():
		fyne.DoAndWait(func() { gesture.Cancel() })
		res = <-results
	}
	fyne.Do(func() {
		win.SetOnClosed(nil)
		win.Close()
	})

	if res.err != nil {
		log.Printf("Region selection ended without a region: %v", res.err)
		return screenshot.Rectangle{}, res.err
	}
	log.Printf("Region selected: %s (%s)", res.rect, res.rect.Size())
	return res.rect, nil
}

func newOverlayWindow(app fyne.App) fyne.Window {
	var w fyne.Window
	if drv, ok := app.Driver().(desktop.Driver); ok {
		w = drv.CreateSplashWindow()
	} else {
		w = app.NewWindow("Select Region")
	}
	w.SetPadded(false)
	w.SetFullScreen(true)
	return w
}

// selectionSurface turns pointer events into Gesture input. Positions arrive
// in canvas units relative to the window and are scaled to screen pixels.
type selectionSurface struct {
	widget.BaseWidget

	win     fyne.Window
	origin  image.Point
	gesture *Gesture

	background *canvas.Image
	dim        *canvas.Rectangle
	outline    *canvas.Rectangle
	last       fyne.Position
}

func newSelectionSurface(win fyne.Window, frozen image.Image, origin image.Point, g *Gesture) *selectionSurface {
	s := &selectionSurface{win: win, origin: origin, gesture: g}

	s.background = canvas.NewImageFromImage(frozen)
	s.background.FillMode = canvas.ImageFillStretch
	s.background.ScaleMode = canvas.ImageScalePixels

	s.dim = canvas.NewRectangle(dimColor)

	s.outline = canvas.NewRectangle(color.Transparent)
	s.outline.StrokeColor = outlineColor
	s.outline.StrokeWidth = 2
	s.outline.Hide()

	s.ExtendBaseWidget(s)
	return s
}

func (s *selectionSurface) content() fyne.CanvasObject {
	label := canvas.NewText(hint, color.White)
	label.TextStyle = fyne.TextStyle{Bold: true}
	return container.NewStack(s, container.NewVBox(container.NewCenter(label)))
}

func (s *selectionSurface) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewStack(
		s.background,
		s.dim,
		container.NewWithoutLayout(s.outline),
	))
}

func (s *selectionSurface) Cursor() desktop.Cursor { return desktop.CrosshairCursor }

func (s *selectionSurface) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button == desktop.MouseButtonSecondary {
		s.gesture.Cancel()
		return
	}
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	s.last = ev.Position
	s.gesture.Press(s.toScreen(ev.Position))
	s.redraw()
}

func (s *selectionSurface) Dragged(ev *fyne.DragEvent) {
	s.last = ev.Position
	s.gesture.Drag(s.toScreen(ev.Position))
	s.redraw()
}

func (s *selectionSurface) DragEnd() {
	s.gesture.Release(s.toScreen(s.last))
}

func (s *selectionSurface) MouseUp(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	s.gesture.Release(s.toScreen(ev.Position))
}

func (s *selectionSurface) toScreen(p fyne.Position) image.Point {
	scale := s.win.Canvas().Scale()
	return image.Pt(
		s.origin.X+int(math.Round(float64(p.X*scale))),
		s.origin.Y+int(math.Round(float64(p.Y*scale))),
	)
}

func (s *selectionSurface) redraw() {
	r, ok := s.gesture.Outline()
	if !ok {
		s.outline.Hide()
		return
	}
	scale := s.win.Canvas().Scale()
	r = r.Sub(s.origin)
	s.outline.Move(fyne.NewPos(float32(r.Min.X)/scale, float32(r.Min.Y)/scale))
	s.outline.Resize(fyne.NewSize(float32(r.Dx())/scale, float32(r.Dy())/scale))
	s.outline.Show()
	s.outline.Refresh()
}
