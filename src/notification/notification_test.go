package notification

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"
)

type slowNotifier struct {
	mu      sync.Mutex
	got     []string
	release chan struct{}
}

func (s *slowNotifier) Notify(title, message string, _ time.Duration) error {
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, message)
	return errors.New("ignored")
}

func TestDispatcherNeverBlocks(t *testing.T) {
	slow := &slowNotifier{release: make(chan struct{})}
	d := NewDispatcher(slow)

	start := time.Now()
	var dropped int
	for i := 0; i < 10; i++ {
		if errors.Is(d.Notify("SnapZone", "shot", time.Second), ErrBusy) {
			dropped++
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Notify blocked for %v", elapsed)
	}
	if dropped < 8 {
		t.Errorf("Expected most notifications to drop while busy, dropped %d", dropped)
	}

	close(slow.release)
	d.Close()
	slow.mu.Lock()
	defer slow.mu.Unlock()
	if n := len(slow.got); n < 1 || n > 2 {
		t.Errorf("Expected 1 or 2 delivered notifications, got %d", n)
	}
}

func TestDesktopWithoutApp(t *testing.T) {
	if err := (Desktop{}).Notify("SnapZone", "x", time.Second); err == nil {
		t.Error("Expected an error without an app")
	}
}

func TestShowBlockingErrorNonWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("would open a modal dialog")
	}
	ShowBlockingError("SnapZone", "test message")
}
