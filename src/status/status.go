package status

import (
	"fmt"
	"log"
	"sync"
	"time"

	"snapzone/src/scheduler"
)

// DefaultBacklog is how many log lines a Reporter keeps for display.
const DefaultBacklog = 500

type Options struct {
	// Notifier receives the completion notification when NotifyOnComplete is set.
	Notifier         scheduler.Notifier
	NotifyOnComplete bool
	Backlog          int
	// OnLine is called with every formatted line, outside the Reporter lock.
	OnLine func(line string)
	Now    func() time.Time
}

// Reporter turns scheduler events into timestamped user-facing lines.
// It is safe for concurrent use and implements scheduler.Observer.
type Reporter struct {
	notifier       scheduler.Notifier
	notifyComplete bool
	onLine         func(string)
	now            func() time.Time

	mu    sync.Mutex
	max   int
	lines []string
}

func NewReporter(opts Options) *Reporter {
	r := &Reporter{
		notifier:       opts.Notifier,
		notifyComplete: opts.NotifyOnComplete,
		onLine:         opts.OnLine,
		now:            opts.Now,
		max:            opts.Backlog,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.max <= 0 {
		r.max = DefaultBacklog
	}
	return r
}

// Log records one message as "[HH:MM:SS] message".
func (r *Reporter) Log(msg string) {
	line := fmt.Sprintf("[%s] %s", r.now().Format("15:04:05"), msg)
	log.Print(msg)

	r.mu.Lock()
	r.lines = append(r.lines, line)
	if over := len(r.lines) - r.max; over > 0 {
		r.lines = append(r.lines[:0:0], r.lines[over:]...)
	}
	r.mu.Unlock()

	if r.onLine != nil {
		r.onLine(line)
	}
}

// Logf is Log with formatting.
func (r *Reporter) Logf(format string, args ...any) { r.Log(fmt.Sprintf(format, args...)) }

// Lines returns a copy of the backlog, oldest first.
func (r *Reporter) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *Reporter) OnEvent(ev scheduler.Event) {
	switch ev.Kind {
	case scheduler.EventStarted:
		r.Logf("Starting capture: Duration=%s, Interval=%s", seconds(ev.Config.Duration), seconds(ev.Config.Interval))
		r.Logf("Screenshots will be saved to: %s", ev.SessionDir)
	case scheduler.EventPaused:
		r.Log("Capture paused.")
	case scheduler.EventResumed:
		r.Log("Capture resumed.")
	case scheduler.EventStopRequested:
		r.Log("Capture stopped by user.")
	case scheduler.EventDurationReached:
		r.Log("Duration limit reached.")
	case scheduler.EventShotSaved:
		r.Logf("Screenshot #%d saved", ev.Shot)
	case scheduler.EventCaptureFailed:
		r.Logf("Error taking screenshot #%d: %v", ev.Shot, ev.Err)
	case scheduler.EventFinished:
		if ev.Summary.Err != nil {
			r.Logf("Screenshot process error: %v", ev.Summary.Err)
		}
		msg := CompletionMessage(ev.Summary)
		r.Log(msg)
		r.notifyCompletion(msg)
	}
}

// CompletionMessage is the final line of a session.
func CompletionMessage(s scheduler.Summary) string {
	return fmt.Sprintf("Session completed. %d screenshots saved to: %s", s.Shots, s.SessionDir)
}

func (r *Reporter) notifyCompletion(msg string) {
	if !r.notifyComplete || r.notifier == nil {
		return
	}
	if err := r.notifier.Notify("SnapZone", msg, 3*time.Second); err != nil {
		log.Printf("status: completion notification failed: %v", err)
	}
}

func seconds(d time.Duration) string {
	if d <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%ds", int64(d/time.Second))
}
