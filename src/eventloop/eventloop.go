package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"snapzone/src/hotkey"
	"snapzone/src/scheduler"
	"snapzone/src/singleinstance"
	"snapzone/src/status"
)

// Controller is the part of the scheduler the loop drives.
type Controller interface {
	status.Source
	Start(cfg scheduler.Config) error
	Pause() bool
	Resume() bool
	TogglePause() bool
	Stop() bool
}

type Options struct {
	Scheduler Controller
	// Config returns the configuration a START request should use.
	Config func() (scheduler.Config, error)
	// OnShow brings the settings window to the front.
	OnShow func()
	// Server defaults to singleinstance.NewServer. A server that is already
	// started is reused as is.
	Server singleinstance.Server
}

type action int

const (
	actionTogglePause action = iota
	actionStop
)

// Loop is the single-threaded coordinator for control requests and hotkeys.
type Loop struct {
	ctrl     Controller
	config   func() (scheduler.Config, error)
	onShow   func()
	srv      singleinstance.Server
	hotkeyCh chan action
	listener *hotkey.Listener
}

func New(opts Options) *Loop {
	l := &Loop{
		ctrl:     opts.Scheduler,
		config:   opts.Config,
		onShow:   opts.OnShow,
		srv:      opts.Server,
		hotkeyCh: make(chan action, 4),
	}
	if l.srv == nil {
		l.srv = singleinstance.NewServer()
	}
	return l
}

// StartHotkeys registers the global pause and stop hotkeys and posts them into the loop.
// An empty combination disables that hotkey.
func (l *Loop) StartHotkeys(pauseCombo, stopCombo string) error {
	var bindings []hotkey.Binding
	if pauseCombo != "" {
		bindings = append(bindings, hotkey.Binding{Name: "pause", Combo: pauseCombo, Action: l.post(actionTogglePause)})
	}
	if stopCombo != "" {
		bindings = append(bindings, hotkey.Binding{Name: "stop", Combo: stopCombo, Action: l.post(actionStop)})
	}
	if len(bindings) == 0 {
		return nil
	}
	lis, err := hotkey.Listen(bindings...)
	if err != nil {
		return err
	}
	l.listener = lis
	return nil
}

func (l *Loop) post(a action) func() {
	return func() {
		select {
		case l.hotkeyCh <- a:
		default:
		}
	}
}

// Run starts the control server and processes requests and hotkeys until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	defer l.srv.Close()
	defer func() {
		if l.listener != nil {
			l.listener.Stop()
		}
	}()
	if p := l.srv.Port(); p > 0 {
		log.Printf("Resident listening on 127.0.0.1:%d", p)
	}

	// Accept loop in background so hotkeys are never stuck behind a slow client.
	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		defer close(reqCh)
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				return
			}
			select {
			case reqCh <- conn:
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-l.hotkeyCh:
			l.handleHotkey(a)
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			l.handleConn(conn)
		}
	}
}

func (l *Loop) handleHotkey(a action) {
	switch a {
	case actionTogglePause:
		if !l.ctrl.TogglePause() {
			log.Printf("handleHotkey: pause ignored, no active session")
		}
	case actionStop:
		if !l.ctrl.Stop() {
			log.Printf("handleHotkey: stop ignored, no active session")
		}
	}
}

func (l *Loop) handleConn(conn singleinstance.Conn) {
	defer conn.Close()
	text, err := l.Execute(conn.Request().Command)
	if err != nil {
		log.Printf("handleConn: %s failed: %v", conn.Request().Command, err)
		_ = conn.RespondError(err.Error())
		return
	}
	_ = conn.RespondSuccess(text)
}

var (
	ErrNotRunning = errors.New("no capture session is running")
	ErrNotPaused  = errors.New("capture is not paused")
)

// Execute performs one control command against the scheduler.
func (l *Loop) Execute(cmd singleinstance.Command) (string, error) {
	switch cmd {
	case singleinstance.CmdStart:
		if l.config == nil {
			return "", errors.New("no configuration source")
		}
		cfg, err := l.config()
		if err != nil {
			return "", err
		}
		if err := l.ctrl.Start(cfg); err != nil {
			return "", err
		}
		return "Started: " + l.ctrl.Snapshot().SessionDir, nil
	case singleinstance.CmdPause:
		if !l.ctrl.Pause() {
			return "", ErrNotRunning
		}
		return "Paused", nil
	case singleinstance.CmdResume:
		if !l.ctrl.Resume() {
			return "", ErrNotPaused
		}
		return "Resumed", nil
	case singleinstance.CmdStop:
		if !l.ctrl.Stop() {
			return "", ErrNotRunning
		}
		return "Stopping", nil
	case singleinstance.CmdStatus:
		return Describe(status.Capture(l.ctrl, time.Now())), nil
	case singleinstance.CmdShow:
		if l.onShow != nil {
			l.onShow()
		}
		return "", nil
	default:
		return "", fmt.Errorf("unsupported command %q", cmd)
	}
}

// Describe renders a View for the STATUS reply.
func Describe(v status.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", v.Status)
	fmt.Fprintf(&b, "Screenshots: %d\n", v.Shots)
	fmt.Fprintf(&b, "Time running: %s\n", status.FormatElapsed(v.Elapsed))
	if v.SessionDir != "" {
		fmt.Fprintf(&b, "Session: %s\n", v.SessionDir)
	}
	return b.String()
}
