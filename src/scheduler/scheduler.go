package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"snapzone/src/screenshot"
	"snapzone/src/session"
)

// DefaultPollQuantum bounds how long a paused loop sleeps before re-reading its state.
const DefaultPollQuantum = 100 * time.Millisecond

// Status is the scheduler state. Transitions:
// Idle -> Running -> {Paused <-> Running} -> Stopped -> Idle.
type Status int32

const (
	Idle Status = iota
	Running
	Paused
	Stopped
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Stopped:
		return "Stopped"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// SessionState is a read-only snapshot of the scheduler.
type SessionState struct {
	Status     Status
	ShotCount  int
	StartTime  time.Time
	SessionDir string
}

// Reason tells why a session ended.
type Reason int

const (
	ReasonCompleted Reason = iota
	ReasonStopped
	ReasonFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonCompleted:
		return "duration reached"
	case ReasonStopped:
		return "stopped by user"
	default:
		return "failed"
	}
}

// Summary is reported once when a session ends.
type Summary struct {
	Shots      int
	SessionDir string
	Reason     Reason
	Elapsed    time.Duration
	Err        error
}

// Writer persists shots. *session.Writer is the production implementation.
type Writer interface {
	PrepareSession(baseDir string) (string, error)
	CaptureOne(sessionDir string, rect screenshot.Rectangle, counter int) (string, error)
}

// Notifier must return promptly; its errors are ignored.
type Notifier interface {
	Notify(title, message string, timeout time.Duration) error
}

// Clock abstracts wall time so tests can run long sessions instantly.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type Options struct {
	Writer      Writer
	Notifier    Notifier
	Observer    Observer
	Clock       Clock
	PollQuantum time.Duration
}

// run holds everything fixed for the lifetime of one session.
type run struct {
	cfg   Config
	dir   string
	start time.Time
	stop  chan struct{}
	done  chan struct{}
}

// Scheduler owns the session state and the single capture goroutine.
// Control methods are safe to call from any goroutine.
type Scheduler struct {
	writer   Writer
	notifier Notifier
	observer Observer
	clock    Clock
	quantum  time.Duration

	mu   sync.Mutex // serializes Start/Stop and guards cur and last
	cur  *run
	last Summary

	status atomic.Int32
	shots  atomic.Int64
	resume chan struct{}
}

// New returns an idle scheduler. A nil Writer captures the screen into PNG files.
func New(opts Options) *Scheduler {
	s := &Scheduler{
		writer:   opts.Writer,
		notifier: opts.Notifier,
		observer: opts.Observer,
		clock:    opts.Clock,
		quantum:  opts.PollQuantum,
		resume:   make(chan struct{}, 1),
	}
	if s.writer == nil {
		s.writer = session.NewWriter(nil)
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.quantum <= 0 {
		s.quantum = DefaultPollQuantum
	}
	return s
}

// Status returns the current state.
func (s *Scheduler) Status() Status { return Status(s.status.Load()) }

// Start validates cfg, creates the session directory and launches the capture
// loop. A session that is still active is never replaced: Start returns
// ErrAlreadyRunning instead.
func (s *Scheduler) Start(cfg Config) error {
	r, err := s.begin(cfg)
	if err != nil {
		return err
	}
	log.Printf("scheduler: starting capture duration=%s interval=%s region=%s dir=%s", cfg.Duration, cfg.Interval, cfg.Region, r.dir)
	s.emit(Event{Kind: EventStarted, Config: cfg, SessionDir: r.dir})
	go s.loop(r)
	return nil
}

func (s *Scheduler) begin(cfg Config) (*run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.Status(); st != Idle {
		return nil, fmt.Errorf("%w (status %s)", ErrAlreadyRunning, st)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	start := s.clock.Now()
	dir, err := s.writer.PrepareSession(cfg.SaveDir)
	if err != nil {
		log.Printf("scheduler: error creating session directory: %v", err)
		if !errors.Is(err, session.ErrSessionDir) {
			err = fmt.Errorf("%w: %v", session.ErrSessionDir, err)
		}
		return nil, err
	}

	r := &run{
		cfg:   cfg,
		dir:   dir,
		start: start,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	s.cur = r
	s.shots.Store(0)
	select {
	case <-s.resume:
	default:
	}
	s.status.Store(int32(Running))
	return r, nil
}

// Pause moves Running to Paused. It reports whether the state changed.
func (s *Scheduler) Pause() bool {
	if !s.status.CompareAndSwap(int32(Running), int32(Paused)) {
		return false
	}
	s.emit(Event{Kind: EventPaused})
	return true
}

// Resume moves Paused to Running. It reports whether the state changed.
func (s *Scheduler) Resume() bool {
	if !s.status.CompareAndSwap(int32(Paused), int32(Running)) {
		return false
	}
	select {
	case s.resume <- struct{}{}:
	default:
	}
	s.emit(Event{Kind: EventResumed})
	return true
}

// TogglePause pauses a running session or resumes a paused one.
func (s *Scheduler) TogglePause() bool {
	if s.Pause() {
		return true
	}
	return s.Resume()
}

// Stop asks the loop to halt at its next safe point. It never waits for the
// loop; use Wait for that. Stopping an idle scheduler is a no-op.
func (s *Scheduler) Stop() bool {
	if !s.requestStop() {
		return false
	}
	s.emit(Event{Kind: EventStopRequested})
	return true
}

func (s *Scheduler) requestStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		st := s.Status()
		if st != Running && st != Paused {
			return false
		}
		if s.status.CompareAndSwap(int32(st), int32(Stopped)) {
			break
		}
	}
	close(s.cur.stop)
	return true
}

// Wait blocks until the current session, if any, has returned to Idle.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	r := s.cur
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the session state.
func (s *Scheduler) Snapshot() SessionState {
	s.mu.Lock()
	r := s.cur
	s.mu.Unlock()

	st := SessionState{Status: s.Status(), ShotCount: int(s.shots.Load())}
	if r != nil {
		st.StartTime = r.start
		st.SessionDir = r.dir
	}
	return st
}

// LastSummary returns the summary of the most recently finished session.
func (s *Scheduler) LastSummary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) loop(r *run) {
	reason := ReasonStopped
	var failure error
	defer func() {
		if p := recover(); p != nil {
			failure = fmt.Errorf("capture loop panic: %v", p)
			reason = ReasonFailed
			log.Printf("scheduler: %v", failure)
		}
		s.finish(r, reason, failure)
	}()

	for {
		if r.cfg.Duration > 0 && s.clock.Now().Sub(r.start) >= r.cfg.Duration {
			reason = ReasonCompleted
			s.emit(Event{Kind: EventDurationReached})
			return
		}

		switch s.Status() {
		case Running:
		case Paused:
			if !s.waitWhilePaused(r) {
				return
			}
			// the bound may have expired while paused
			continue
		default:
			return
		}
		if stopped(r) {
			return
		}

		s.tick(r)

		select {
		case <-r.stop:
			return
		case <-s.clock.After(r.cfg.Interval):
		}
	}
}

func (s *Scheduler) tick(r *run) {
	n := int(s.shots.Load()) + 1
	file, err := s.writer.CaptureOne(r.dir, r.cfg.Region, n)
	if err != nil {
		log.Printf("scheduler: error taking screenshot #%d: %v", n, err)
		s.emit(Event{Kind: EventCaptureFailed, Shot: n, Err: err})
		return
	}
	s.shots.Store(int64(n))
	s.emit(Event{Kind: EventShotSaved, Shot: n, File: file})
	s.notify("SnapZone", fmt.Sprintf("Screenshot #%d saved", n))
}

// waitWhilePaused returns true once the session is running again and false
// when it was stopped.
func (s *Scheduler) waitWhilePaused(r *run) bool {
	for s.Status() == Paused {
		select {
		case <-r.stop:
			return false
		case <-s.resume:
		case <-s.clock.After(s.quantum):
		}
	}
	return s.Status() == Running
}

func (s *Scheduler) notify(title, message string) {
	if s.notifier == nil {
		return
	}
	defer func() { _ = recover() }()
	_ = s.notifier.Notify(title, message, time.Second)
}

func (s *Scheduler) finish(r *run, reason Reason, failure error) {
	for {
		st := s.Status()
		if st == Stopped || s.status.CompareAndSwap(int32(st), int32(Stopped)) {
			break
		}
	}

	summary := Summary{
		Shots:      int(s.shots.Load()),
		SessionDir: r.dir,
		Reason:     reason,
		Elapsed:    s.clock.Now().Sub(r.start),
		Err:        failure,
	}
	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	log.Printf("scheduler: session completed (%s): %d screenshots saved to %s", reason, summary.Shots, r.dir)
	s.emit(Event{Kind: EventFinished, Summary: summary, SessionDir: r.dir})

	s.status.Store(int32(Idle))
	close(r.done)
}

func stopped(r *run) bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}
