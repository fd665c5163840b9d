package tray

import (
	"errors"
	"log"
	"sync"

	"github.com/getlantern/systray"

	"snapzone/src/scheduler"
	"snapzone/src/status"
)

// Config carries the menu callbacks. Callbacks run on the tray goroutine and
// must hand UI work to the fyne goroutine themselves.
type Config struct {
	Title         string
	Tooltip       string
	OnShow        func()
	OnStart       func()
	OnTogglePause func()
	OnStop        func()
	OnCopyPath    func()
	OnExit        func()
}

// ErrExists is returned by New once the process-wide tray has been created.
var ErrExists = errors.New("tray already created")

var (
	instanceMu sync.Mutex
	instance   *Tray
)

// Tray is the process-wide tray icon. The icon appears on the first Show and
// is removed once by Close.
type Tray struct {
	cfg Config

	runOnce   sync.Once
	closeOnce sync.Once

	mu      sync.Mutex
	ready   bool
	closed  bool
	view    status.View
	items   menuItems
	host    host
	shown   *shown
	running chan struct{}
}

// shown is what the tray currently displays.
type shown struct {
	menu    menu
	tooltip string
}

// host is the slice of the systray API that Update drives.
type host interface {
	SetIcon(icon []byte)
	SetTooltip(text string)
	SetMenu(items menuItems, m menu)
}

type systrayHost struct{}

func (systrayHost) SetIcon(icon []byte) { systray.SetIcon(icon) }
func (systrayHost) SetTooltip(text string) { systray.SetTooltip(text) }

func (systrayHost) SetMenu(items menuItems, m menu) {
	items.pause.SetTitle(m.pauseTitle)
	setEnabled(items.start, m.start)
	setEnabled(items.pause, m.pause)
	setEnabled(items.stop, m.stop)
	setEnabled(items.copyPath, m.copyPath)
}

type menuItems struct {
	show, start, pause, stop, copyPath, exit *systray.MenuItem
}

// New creates the singleton. Nothing is displayed until Show.
func New(cfg Config) (*Tray, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return nil, ErrExists
	}
	if cfg.Title == "" {
		cfg.Title = "SnapZone"
	}
	if cfg.Tooltip == "" {
		cfg.Tooltip = "SnapZone - Idle"
	}
	instance = &Tray{cfg: cfg, host: systrayHost{}, running: make(chan struct{})}
	return instance, nil
}

// Show starts the tray loop on first use.
func (t *Tray) Show() {
	t.runOnce.Do(func() {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}
		log.Printf("tray: starting")
		go func() {
			defer close(t.running)
			systray.Run(t.onReady, t.onExit)
		}()
	})
}

// Update refreshes the tooltip and the enabled menu entries.
func (t *Tray) Update(v status.View) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.view = v
	if t.ready && !t.closed {
		t.apply()
	}
}

// Close removes the icon. Safe to call more than once and before Show.
func (t *Tray) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		started := t.ready
		t.mu.Unlock()
		if started {
			systray.Quit()
		}
	})
}

func (t *Tray) onReady() {
	systray.SetTitle(t.cfg.Title)
	systray.SetTooltip(t.cfg.Tooltip)

	items := menuItems{
		show:  systray.AddMenuItem("Show SnapZone", "Open the settings window"),
		start: systray.AddMenuItem("Start Capture", "Start capturing the selected region"),
		pause: systray.AddMenuItem("Pause", "Pause or resume capturing"),
		stop:  systray.AddMenuItem("Stop", "Stop the capture session"),
	}
	items.copyPath = systray.AddMenuItem("Copy Session Path", "Copy the session folder to the clipboard")
	systray.AddSeparator()
	items.exit = systray.AddMenuItem("Exit", "Quit SnapZone")

	t.mu.Lock()
	t.items = items
	t.ready = true
	closed := t.closed
	t.apply()
	t.mu.Unlock()
	if closed {
		systray.Quit()
		return
	}

	go t.dispatch(items)
}

func (t *Tray) dispatch(items menuItems) {
	call := func(fn func()) {
		if fn != nil {
			fn()
		}
	}
	for {
		select {
		case <-items.show.ClickedCh:
			call(t.cfg.OnShow)
		case <-items.start.ClickedCh:
			call(t.cfg.OnStart)
		case <-items.pause.ClickedCh:
			call(t.cfg.OnTogglePause)
		case <-items.stop.ClickedCh:
			call(t.cfg.OnStop)
		case <-items.copyPath.ClickedCh:
			call(t.cfg.OnCopyPath)
		case <-items.exit.ClickedCh:
			call(t.cfg.OnExit)
			return
		case <-t.running:
			return
		}
	}
}

func (t *Tray) onExit() {
	log.Printf("tray: exited")
}

// apply pushes whatever differs from the last displayed state. It must be
// called with t.mu held and the menu built.
func (t *Tray) apply() {
	next := shown{menu: menuState(t.view), tooltip: t.view.Tooltip()}
	prev := t.shown
	if prev != nil && *prev == next {
		return
	}
	if prev == nil || prev.tooltip != next.tooltip {
		t.host.SetTooltip(next.tooltip)
	}
	if prev == nil || prev.menu.paused != next.menu.paused {
		t.host.SetIcon(icon(next.menu.paused))
	}
	if prev == nil || prev.menu != next.menu {
		t.host.SetMenu(t.items, next.menu)
	}
	t.shown = &next
}

type menu struct {
	start, pause, stop, copyPath bool
	paused                       bool
	pauseTitle                   string
}

func menuState(v status.View) menu {
	active := v.Status == scheduler.Running || v.Status == scheduler.Paused
	m := menu{
		start:      v.Status == scheduler.Idle,
		pause:      active,
		stop:       active,
		copyPath:   v.SessionDir != "",
		paused:     v.Status == scheduler.Paused,
		pauseTitle: "Pause",
	}
	if m.paused {
		m.pauseTitle = "Resume"
	}
	return m
}

func setEnabled(item *systray.MenuItem, on bool) {
	if on {
		item.Enable()
	} else {
		item.Disable()
	}
}
