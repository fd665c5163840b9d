package notification

import (
	"context"
	"errors"
	"log"
	"time"

	"fyne.io/fyne/v2"

	"snapzone/src/worker"
)

// ErrBusy is returned when a notification is dropped because one is already pending.
var ErrBusy = errors.New("notification dropped: dispatcher busy")

// Notifier shows a short desktop notification.
type Notifier interface {
	Notify(title, message string, timeout time.Duration) error
}

// Desktop sends notifications through the fyne app.
type Desktop struct {
	App fyne.App
}

func (d Desktop) Notify(title, message string, _ time.Duration) error {
	if d.App == nil {
		return errors.New("no application to notify through")
	}
	d.App.SendNotification(fyne.NewNotification(title, message))
	return nil
}

// Log writes notifications to the process log. Used when no desktop is available.
type Log struct{}

func (Log) Notify(title, message string, _ time.Duration) error {
	log.Printf("%s: %s", title, message)
	return nil
}

// Dispatcher makes a Notifier fire-and-forget: Notify hands the message to a
// single worker and returns at once. Messages arriving while one is pending are dropped.
type Dispatcher struct {
	next Notifier
	pool *worker.Pool
}

func NewDispatcher(next Notifier) *Dispatcher {
	return &Dispatcher{next: next, pool: worker.New(1)}
}

func (d *Dispatcher) Notify(title, message string, timeout time.Duration) error {
	ok := d.pool.Submit(context.Background(), func(context.Context) {
		if err := d.next.Notify(title, message, timeout); err != nil {
			log.Printf("notification: %v", err)
		}
	})
	if !ok {
		return ErrBusy
	}
	return nil
}

// Close waits for a pending notification and stops the worker.
func (d *Dispatcher) Close() { d.pool.Close() }
