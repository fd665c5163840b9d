package scheduler

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"snapzone/src/screenshot"
	"snapzone/src/session"
)

// fakeClock advances virtual time by the requested duration each time a
// timer fires, after a tiny real delay so goroutines can interleave.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	go func() {
		time.Sleep(time.Millisecond)
		c.mu.Lock()
		c.now = c.now.Add(d)
		t := c.now
		c.mu.Unlock()
		ch <- t
	}()
	return ch
}

type blankGrabber struct{}

func (blankGrabber) Grab(r screenshot.Rectangle) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, r.Width(), r.Height())), nil
}

// countingWriter records capture attempts without touching the disk.
type countingWriter struct {
	mu      sync.Mutex
	calls   int
	saved   []int
	prepErr error
	failAt  map[int]bool
	panicAt int
}

func (w *countingWriter) PrepareSession(baseDir string) (string, error) {
	if w.prepErr != nil {
		return "", w.prepErr
	}
	return filepath.Join(baseDir, "session"), nil
}

func (w *countingWriter) CaptureOne(dir string, rect screenshot.Rectangle, counter int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.panicAt > 0 && w.calls == w.panicAt {
		panic("grab exploded")
	}
	if w.failAt[w.calls] {
		return "", &session.CaptureError{Op: "grab", Err: errors.New("display asleep")}
	}
	w.saved = append(w.saved, counter)
	return filepath.Join(dir, "shot"), nil
}

func (w *countingWriter) savedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.saved)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) OnEvent(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type failingNotifier struct{ calls atomic.Int32 }

func (n *failingNotifier) Notify(title, message string, timeout time.Duration) error {
	if n.calls.Add(1)%2 == 0 {
		panic("notification daemon gone")
	}
	return errors.New("no notification service")
}

var region = screenshot.Rectangle{X1: 10, Y1: 10, X2: 110, Y2: 60}

func validConfig(t *testing.T, duration, interval time.Duration) Config {
	t.Helper()
	return Config{Duration: duration, Interval: interval, SaveDir: t.TempDir(), Region: region}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if st := s.Status(); st != Idle {
		t.Fatalf("Expected Idle after Wait, got %s", st)
	}
}

func pngFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read session dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".png") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// shotCounter extracts NNNN from screenshot_<timestamp>_NNNN.png.
func shotCounter(t *testing.T, name string) int {
	t.Helper()
	base := strings.TrimSuffix(name, ".png")
	i := strings.LastIndexByte(base, '_')
	digits := base[i+1:]
	n, err := strconv.Atoi(digits)
	if i < 0 || len(digits) != 4 || err != nil {
		t.Fatalf("Unexpected shot filename %q", name)
	}
	return n
}

func TestDurationTenIntervalFive(t *testing.T) {
	clock := newFakeClock()
	events := &eventLog{}
	writer := session.NewWriter(blankGrabber{}).WithClock(clock.Now)
	s := New(Options{Writer: writer, Observer: events, Clock: clock})

	if err := s.Start(validConfig(t, 10*time.Second, 5*time.Second)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, s)

	sum := s.LastSummary()
	if sum.Reason != ReasonCompleted {
		t.Errorf("Expected natural completion, got %s", sum.Reason)
	}
	if sum.Shots != 2 {
		t.Errorf("Expected 2 shots, got %d", sum.Shots)
	}
	if sum.Elapsed > 15*time.Second {
		t.Errorf("Expected completion by t=15s, took %s", sum.Elapsed)
	}

	files := pngFiles(t, sum.SessionDir)
	if len(files) != 2 {
		t.Fatalf("Expected 2 PNG files, got %v", files)
	}
	if !strings.HasSuffix(files[0], "_0001.png") || !strings.HasSuffix(files[1], "_0002.png") {
		t.Errorf("Unexpected counters in %v", files)
	}
	if !strings.HasPrefix(filepath.Base(sum.SessionDir), "SnapZone_Session_") {
		t.Errorf("Unexpected session dir %s", sum.SessionDir)
	}
	if n := events.count(EventFinished); n != 1 {
		t.Errorf("Expected exactly one finished event, got %d", n)
	}
	if n := events.count(EventDurationReached); n != 1 {
		t.Errorf("Expected one duration-reached event, got %d", n)
	}
}

func TestDurationBoundMaxCaptures(t *testing.T) {
	tests := []struct {
		duration, interval time.Duration
		max                int
	}{
		{7 * time.Second, 5 * time.Second, 2},
		{3 * time.Second, 1 * time.Second, 3},
		{1 * time.Second, 10 * time.Second, 1},
	}
	for _, tt := range tests {
		t.Run(tt.duration.String()+"/"+tt.interval.String(), func(t *testing.T) {
			clock := newFakeClock()
			w := &countingWriter{}
			s := New(Options{Writer: w, Clock: clock})
			if err := s.Start(validConfig(t, tt.duration, tt.interval)); err != nil {
				t.Fatalf("Start: %v", err)
			}
			waitIdle(t, s)
			sum := s.LastSummary()
			if sum.Shots > tt.max {
				t.Errorf("Expected at most %d captures, got %d", tt.max, sum.Shots)
			}
			if sum.Elapsed > tt.duration+tt.interval {
				t.Errorf("Expected termination within %s, took %s", tt.duration+tt.interval, sum.Elapsed)
			}
		})
	}
}

func TestStartThenStopMatchesFiles(t *testing.T) {
	clock := newFakeClock()
	writer := session.NewWriter(blankGrabber{}).WithClock(clock.Now)
	s := New(Options{Writer: writer, Clock: clock})

	if err := s.Start(validConfig(t, 0, time.Second)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Stop() {
		t.Fatal("Expected Stop to act on a running session")
	}
	waitIdle(t, s)

	snap := s.Snapshot()
	if got := len(pngFiles(t, snap.SessionDir)); got != snap.ShotCount {
		t.Errorf("Expected %d files, found %d", snap.ShotCount, got)
	}
	if s.LastSummary().Reason != ReasonStopped {
		t.Errorf("Expected stopped by user, got %s", s.LastSummary().Reason)
	}
	if s.Stop() {
		t.Error("Stop on an idle scheduler should be a no-op")
	}
}

func TestStopAfterSeveralShots(t *testing.T) {
	clock := newFakeClock()
	writer := session.NewWriter(blankGrabber{}).WithClock(clock.Now)
	s := New(Options{Writer: writer, Clock: clock})

	if err := s.Start(validConfig(t, 0, time.Second)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "three shots", func() bool { return s.Snapshot().ShotCount >= 3 })
	s.Stop()
	waitIdle(t, s)

	snap := s.Snapshot()
	files := pngFiles(t, snap.SessionDir)
	if len(files) != snap.ShotCount {
		t.Fatalf("Expected %d files, found %d", snap.ShotCount, len(files))
	}
	// name order is timestamp order; the counters must follow it as 1..N
	for i, name := range files {
		if got := shotCounter(t, name); got != i+1 {
			t.Errorf("Expected %s to carry counter %d, got %d", name, i+1, got)
		}
	}
}

func TestStopObservedDuringLongInterval(t *testing.T) {
	w := &countingWriter{}
	s := New(Options{Writer: w})

	if err := s.Start(validConfig(t, 0, time.Hour)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "first shot", func() bool { return w.savedCount() == 1 })

	s.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Expected stop within 200ms: %v", err)
	}
	if w.savedCount() != 1 {
		t.Errorf("Expected no capture after stop, got %d", w.savedCount())
	}
}

func TestPauseProducesNoCaptures(t *testing.T) {
	w := &countingWriter{}
	s := New(Options{Writer: w, PollQuantum: 10 * time.Millisecond})

	if err := s.Start(validConfig(t, 0, 20*time.Millisecond)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "two shots", func() bool { return w.savedCount() >= 2 })

	if !s.Pause() {
		t.Fatal("Expected Pause to act on a running session")
	}
	if s.Pause() {
		t.Error("Pausing twice should be a no-op")
	}
	// let an in-flight tick settle
	time.Sleep(30 * time.Millisecond)
	before := w.savedCount()
	time.Sleep(10 * 20 * time.Millisecond)
	if after := w.savedCount(); after != before {
		t.Fatalf("Captured %d shots while paused", after-before)
	}
	if st := s.Snapshot().Status; st != Paused {
		t.Errorf("Expected Paused, got %s", st)
	}

	if !s.Resume() {
		t.Fatal("Expected Resume to act on a paused session")
	}
	waitFor(t, "capture after resume", func() bool { return w.savedCount() > before })

	s.Stop()
	waitIdle(t, s)
}

func TestStopWhilePaused(t *testing.T) {
	w := &countingWriter{}
	s := New(Options{Writer: w})

	if err := s.Start(validConfig(t, 0, time.Hour)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "first shot", func() bool { return w.savedCount() == 1 })
	s.Pause()

	s.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Expected paused session to stop within 200ms: %v", err)
	}
	if s.Resume() {
		t.Error("Resume on an idle scheduler should be a no-op")
	}
}

func TestSecondStartRejected(t *testing.T) {
	w := &countingWriter{}
	s := New(Options{Writer: w, Clock: newFakeClock()})
	cfg := validConfig(t, 0, time.Second)

	if err := s.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := s.Snapshot().StartTime
	if err := s.Start(cfg); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Expected ErrAlreadyRunning, got %v", err)
	}
	if got := s.Snapshot().StartTime; !got.Equal(first) {
		t.Error("Rejected start must not replace the running session")
	}

	s.Stop()
	waitIdle(t, s)
	if err := s.Start(cfg); err != nil {
		t.Fatalf("Expected restart after stop to succeed: %v", err)
	}
	s.Stop()
	waitIdle(t, s)
}

func TestCaptureFailureContinues(t *testing.T) {
	w := &countingWriter{failAt: map[int]bool{1: true, 3: true}}
	events := &eventLog{}
	s := New(Options{Writer: w, Observer: events, Clock: newFakeClock()})

	if err := s.Start(validConfig(t, 5*time.Second, time.Second)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, s)

	w.mu.Lock()
	saved := append([]int(nil), w.saved...)
	w.mu.Unlock()
	if len(saved) != 3 {
		t.Fatalf("Expected 3 successful shots out of 5 attempts, got %v", saved)
	}
	for i, c := range saved {
		if c != i+1 {
			t.Errorf("Expected counters 1..3 without gaps, got %v", saved)
			break
		}
	}
	if s.LastSummary().Shots != 3 {
		t.Errorf("Expected shot count 3, got %d", s.LastSummary().Shots)
	}
	if n := events.count(EventCaptureFailed); n != 2 {
		t.Errorf("Expected 2 capture failures, got %d", n)
	}
}

func TestSessionDirFailure(t *testing.T) {
	w := &countingWriter{prepErr: errors.New("disk full")}
	s := New(Options{Writer: w})

	err := s.Start(validConfig(t, 0, time.Second))
	if !errors.Is(err, session.ErrSessionDir) {
		t.Fatalf("Expected ErrSessionDir, got %v", err)
	}
	if st := s.Status(); st != Idle {
		t.Errorf("Expected Idle after failed start, got %s", st)
	}
}

func TestInvalidConfigCreatesNothing(t *testing.T) {
	base := t.TempDir()
	s := New(Options{Writer: session.NewWriter(blankGrabber{})})

	for _, interval := range []time.Duration{0, -time.Second} {
		cfg := Config{Interval: interval, SaveDir: base, Region: region}
		if err := s.Start(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("interval=%s: expected ErrInvalidConfig, got %v", interval, err)
		}
	}
	entries, _ := os.ReadDir(base)
	if len(entries) != 0 {
		t.Errorf("Expected no session directory, found %d entries", len(entries))
	}
}

func TestLoopPanicEndsSession(t *testing.T) {
	w := &countingWriter{panicAt: 2}
	events := &eventLog{}
	s := New(Options{Writer: w, Observer: events, Clock: newFakeClock()})

	if err := s.Start(validConfig(t, 0, time.Second)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, s)

	sum := s.LastSummary()
	if sum.Reason != ReasonFailed || sum.Err == nil {
		t.Errorf("Expected failed summary, got %+v", sum)
	}
	if sum.Shots != 1 {
		t.Errorf("Expected 1 shot before the panic, got %d", sum.Shots)
	}
	if n := events.count(EventFinished); n != 1 {
		t.Errorf("Expected exactly one finished event, got %d", n)
	}
}

func TestNotificationFailuresIgnored(t *testing.T) {
	w := &countingWriter{}
	n := &failingNotifier{}
	s := New(Options{Writer: w, Notifier: n, Clock: newFakeClock()})

	if err := s.Start(validConfig(t, 4*time.Second, time.Second)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, s)

	if got := s.LastSummary().Shots; got != 4 {
		t.Errorf("Expected 4 shots despite notification failures, got %d", got)
	}
	if n.calls.Load() != 4 {
		t.Errorf("Expected one notification per shot, got %d", n.calls.Load())
	}
}

func TestConcurrentControlCalls(t *testing.T) {
	w := &countingWriter{}
	s := New(Options{Writer: w, PollQuantum: time.Millisecond})
	if err := s.Start(validConfig(t, 0, time.Millisecond)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.TogglePause()
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()
	s.Stop()
	waitIdle(t, s)
	if s.LastSummary().Shots != w.savedCount() {
		t.Errorf("Summary shots %d != saved %d", s.LastSummary().Shots, w.savedCount())
	}
}
