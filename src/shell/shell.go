package shell

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"snapzone/src/clipboard"
	"snapzone/src/overlay"
	"snapzone/src/scheduler"
	"snapzone/src/screenshot"
	"snapzone/src/status"
	"snapzone/src/tray"
)

// Scheduler is what the window drives.
type Scheduler interface {
	status.Source
	Start(cfg scheduler.Config) error
	TogglePause() bool
	Stop() bool
}

type Options struct {
	App       fyne.App
	Scheduler Scheduler
	Selector  overlay.Selector
	Reporter  *status.Reporter
	Settings  *Settings
	// Tray may be nil; hiding then only hides the window.
	Tray *tray.Tray
	// OnQuit runs when the window is closed or Exit is chosen.
	OnQuit func()
}

// Shell is the settings window. Exported methods may be called from any goroutine.
type Shell struct {
	app      fyne.App
	win      fyne.Window
	sched    Scheduler
	selector overlay.Selector
	reporter *status.Reporter
	settings *Settings
	tray     *tray.Tray
	onQuit   func()

	selecting atomic.Bool
	quitting  atomic.Bool

	regionLabel *widget.Label
	statusLabel *widget.Label
	countLabel  *widget.Label
	timeLabel   *widget.Label
	startBtn    *widget.Button
	pauseBtn    *widget.Button
	stopBtn     *widget.Button
	copyBtn     *widget.Button
	logLabel    *widget.Label
	logScroll   *container.Scroll
	logLast     string
	logCount    int
}

// New builds the window on the calling goroutine, which must be the one that
// runs the fyne app (before ShowAndRun).
func New(opts Options) *Shell {
	s := &Shell{
		app:      opts.App,
		sched:    opts.Scheduler,
		selector: opts.Selector,
		reporter: opts.Reporter,
		settings: opts.Settings,
		tray:     opts.Tray,
		onQuit:   opts.OnQuit,
	}
	s.win = s.app.NewWindow("SnapZone - Screenshot Tool")
	s.win.SetContent(s.build())
	s.win.Resize(fyne.NewSize(500, 600))
	s.win.SetCloseIntercept(s.Quit)
	return s
}

func (s *Shell) build() fyne.CanvasObject {
	duration, interval, dir := s.settings.Texts()

	durationEntry := widget.NewEntry()
	durationEntry.SetText(duration)
	durationEntry.OnChanged = s.settings.SetDuration

	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(interval)
	intervalEntry.OnChanged = s.settings.SetInterval

	dirEntry := widget.NewEntry()
	dirEntry.SetText(dir)
	dirEntry.OnChanged = s.settings.SetSaveDir
	browse := widget.NewButton("Browse", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil {
				s.reporter.Logf("Error choosing directory: %v", err)
				return
			}
			if uri != nil {
				dirEntry.SetText(uri.Path())
			}
		}, s.win)
	})

	s.regionLabel = widget.NewLabel(RegionText(s.settings.Region()))
	selectBtn := widget.NewButton("Select Region", s.SelectRegion)

	form := widget.NewForm(
		widget.NewFormItem("Duration (seconds)", container.NewBorder(nil, nil, nil, widget.NewLabel("(0 = unlimited)"), durationEntry)),
		widget.NewFormItem("Interval (seconds)", intervalEntry),
		widget.NewFormItem("Save Directory", container.NewBorder(nil, nil, nil, browse, dirEntry)),
		widget.NewFormItem("Capture Region", container.NewBorder(nil, nil, nil, selectBtn, s.regionLabel)),
	)

	s.startBtn = widget.NewButton("Start Capture", s.StartCapture)
	s.pauseBtn = widget.NewButton("Pause", s.TogglePause)
	s.stopBtn = widget.NewButton("Stop", s.StopCapture)
	s.copyBtn = widget.NewButton("Copy Path", s.CopyPath)
	hideBtn := widget.NewButton("Hide to Tray", s.HideToTray)
	s.pauseBtn.Disable()
	s.stopBtn.Disable()
	s.copyBtn.Disable()

	s.statusLabel = widget.NewLabel("Ready")
	s.countLabel = widget.NewLabel("0")
	s.timeLabel = widget.NewLabel("00:00:00")
	statusCard := widget.NewCard("Status", "", widget.NewForm(
		widget.NewFormItem("Status", s.statusLabel),
		widget.NewFormItem("Screenshots taken", s.countLabel),
		widget.NewFormItem("Time running", s.timeLabel),
	))

	s.logLabel = widget.NewLabel("")
	s.logLabel.Wrapping = fyne.TextWrapWord
	s.logScroll = container.NewVScroll(s.logLabel)
	s.logScroll.SetMinSize(fyne.NewSize(0, 160))

	title := widget.NewLabelWithStyle("SnapZone", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	top := container.NewVBox(
		title,
		form,
		container.NewCenter(container.NewHBox(s.startBtn, s.pauseBtn, s.stopBtn)),
		container.NewCenter(container.NewHBox(s.copyBtn, hideBtn)),
		statusCard,
	)
	return container.NewBorder(top, nil, nil, nil, widget.NewCard("Log", "", s.logScroll))
}

// Run keeps the labels, buttons, log view and tray in sync until ctx ends.
func (s *Shell) Run(ctx context.Context) {
	status.Watch(ctx, s.sched, 500*time.Millisecond, func(v status.View) {
		lines := s.reporter.Lines()
		fyne.Do(func() { s.render(v, lines) })
		if s.tray != nil {
			s.tray.Update(v)
		}
	})
}

func (s *Shell) render(v status.View, lines []string) {
	s.statusLabel.SetText(StatusText(v))
	s.countLabel.SetText(strconv.Itoa(v.Shots))
	s.timeLabel.SetText(status.FormatElapsed(v.Elapsed))

	active := v.Status == scheduler.Running || v.Status == scheduler.Paused
	enable(s.startBtn, v.Status == scheduler.Idle)
	enable(s.pauseBtn, active)
	enable(s.stopBtn, active)
	enable(s.copyBtn, v.SessionDir != "")
	if v.Status == scheduler.Paused {
		s.pauseBtn.SetText("Resume")
	} else {
		s.pauseBtn.SetText("Pause")
	}

	last := ""
	if len(lines) > 0 {
		last = lines[len(lines)-1]
	}
	if len(lines) != s.logCount || last != s.logLast {
		s.logCount, s.logLast = len(lines), last
		s.logLabel.SetText(strings.Join(lines, "\n"))
		s.logScroll.ScrollToBottom()
	}
}

// Show brings the window back, e.g. from the tray or a SHOW request.
func (s *Shell) Show() {
	fyne.Do(func() {
		s.win.Show()
		s.win.RequestFocus()
	})
}

// HideToTray hides the window and makes sure the tray icon is visible.
func (s *Shell) HideToTray() {
	if s.tray != nil {
		s.tray.Show()
	}
	fyne.Do(s.win.Hide)
	s.reporter.Log("Minimized to system tray.")
}

// SelectRegion hides the window, runs the overlay on a separate goroutine and
// shows the window again with the outcome.
func (s *Shell) SelectRegion() {
	if !s.selecting.CompareAndSwap(false, true) {
		return
	}
	s.reporter.Log("Click and drag to select capture region. Press ESC to cancel.")
	fyne.Do(s.win.Hide)

	go func() {
		defer s.selecting.Store(false)
		// give the window manager a moment to take the window off screen
		time.Sleep(200 * time.Millisecond)
		r, err := s.selector.Select(context.Background())
		s.selected(r, err)
	}()
}

func (s *Shell) selected(r screenshot.Rectangle, err error) {
	switch {
	case err == nil:
		s.settings.SetRegion(r)
		s.reporter.Logf("Capture region selected: %s", r)
	case errors.Is(err, overlay.ErrCancelled):
		s.reporter.Log("Region selection cancelled.")
	default:
		s.reporter.Logf("Error during region selection: %v", err)
	}

	fyne.Do(func() {
		s.win.Show()
		s.regionLabel.SetText(RegionText(s.settings.Region()))
		if errors.Is(err, overlay.ErrTooSmall) {
			dialog.ShowInformation("Selection Too Small", "Please select a larger area (minimum 10x10 pixels).", s.win)
		}
	})
}

// StartCapture validates the inputs and starts a session.
func (s *Shell) StartCapture() {
	if err := s.start(); err != nil {
		fyne.Do(func() { dialog.ShowInformation(ErrorTitle(err), err.Error(), s.win) })
	}
}

func (s *Shell) start() error {
	cfg, err := s.settings.Config()
	if err == nil {
		err = s.sched.Start(cfg)
	}
	if err != nil {
		s.reporter.Logf("Cannot start capture: %v", err)
	}
	return err
}

// Config returns the validated settings. It backs START control requests.
func (s *Shell) Config() (scheduler.Config, error) { return s.settings.Config() }

func (s *Shell) TogglePause() { s.sched.TogglePause() }

func (s *Shell) StopCapture() { s.sched.Stop() }

// CopyPath copies the current or last session directory to the clipboard.
func (s *Shell) CopyPath() {
	dir := s.sched.Snapshot().SessionDir
	if dir == "" {
		return
	}
	if err := clipboard.Write(dir); err != nil {
		s.reporter.Logf("Failed to copy session path: %v", err)
		return
	}
	s.reporter.Logf("Copied session path: %s", dir)
}

// Quit stops capturing and leaves the application. Safe to call more than once.
func (s *Shell) Quit() {
	if !s.quitting.CompareAndSwap(false, true) {
		return
	}
	log.Printf("shell: quitting")
	s.sched.Stop()
	if s.tray != nil {
		s.tray.Close()
	}
	if s.onQuit != nil {
		s.onQuit()
	}
	fyne.Do(s.app.Quit)
}

func enable(b *widget.Button, on bool) {
	if on {
		b.Enable()
	} else {
		b.Disable()
	}
}

// Window returns the settings window, for the initial Show before the app runs.
func (s *Shell) Window() fyne.Window { return s.win }
