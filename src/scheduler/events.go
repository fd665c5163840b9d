package scheduler

import (
	"log"
	"time"
)

type EventKind int

const (
	EventStarted EventKind = iota
	EventPaused
	EventResumed
	EventStopRequested
	EventShotSaved
	EventCaptureFailed
	EventDurationReached
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventStopRequested:
		return "stop-requested"
	case EventShotSaved:
		return "shot-saved"
	case EventCaptureFailed:
		return "capture-failed"
	case EventDurationReached:
		return "duration-reached"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event describes one state transition or tick outcome.
type Event struct {
	Kind       EventKind
	Time       time.Time
	Shot       int
	File       string
	Err        error
	Config     Config  // EventStarted
	SessionDir string  // EventStarted, EventFinished
	Summary    Summary // EventFinished
}

// Observer receives events from the control goroutines and from the capture
// loop. OnEvent must not block and must be safe for concurrent use.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(ev Event) { f(ev) }

func (s *Scheduler) emit(ev Event) {
	if s.observer == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = s.clock.Now()
	}
	defer func() {
		if p := recover(); p != nil {
			log.Printf("scheduler: observer panic on %s: %v", ev.Kind, p)
		}
	}()
	s.observer.OnEvent(ev)
}
