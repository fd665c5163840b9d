package status

import (
	"context"
	"fmt"
	"time"

	"snapzone/src/scheduler"
)

// Source is the read side of the scheduler.
type Source interface {
	Snapshot() scheduler.SessionState
	LastSummary() scheduler.Summary
}

// View is what the window labels and the tray tooltip display.
type View struct {
	Status     scheduler.Status
	Shots      int
	Elapsed    time.Duration
	SessionDir string
}

// Tooltip renders v on one line.
func (v View) Tooltip() string {
	if v.Status == scheduler.Idle && v.SessionDir == "" {
		return "SnapZone - Idle"
	}
	return fmt.Sprintf("SnapZone - %s - %d screenshots - %s", v.Status, v.Shots, FormatElapsed(v.Elapsed))
}

// Capture reads one View from src. A finished session keeps its final elapsed time.
func Capture(src Source, now time.Time) View {
	st := src.Snapshot()
	v := View{Status: st.Status, Shots: st.ShotCount, SessionDir: st.SessionDir}
	switch st.Status {
	case scheduler.Running, scheduler.Paused, scheduler.Stopped:
		v.Elapsed = now.Sub(st.StartTime)
	default:
		if sum := src.LastSummary(); sum.SessionDir != "" && sum.SessionDir == st.SessionDir {
			v.Elapsed = sum.Elapsed
			v.Shots = sum.Shots
		}
	}
	if v.Elapsed < 0 {
		v.Elapsed = 0
	}
	return v
}

// Watch calls fn with a fresh View immediately and then every interval until ctx ends.
func Watch(ctx context.Context, src Source, every time.Duration, fn func(View)) {
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	fn(Capture(src, time.Now()))
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(Capture(src, now))
		}
	}
}

// FormatElapsed renders d as HH:MM:SS.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}
