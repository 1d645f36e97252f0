// Package ev implements the event queue that serializes all mutation
// of compositor state onto a single logical loop. External signals
// are posted as closures and run only when the owner flushes.
package ev

import (
	"errors"

	"deedles.dev/xsync/cq"
)

type Queue = cq.BulkQueue[func() error, *Events]

func NewQueue() *Queue {
	return cq.New(func(v []func() error) *Events {
		return &Events{
			events: v,
		}
	})
}

// Post enqueues f for execution on the next flush. It blocks until
// the queue accepts the event or done is closed.
func Post(q *Queue, done <-chan struct{}, f func() error) {
	select {
	case <-done:
	case q.Add() <- f:
	}
}

// Events represents a batch of events drained from a Queue.
type Events struct {
	events []func() error
}

// Flush processes all of the events in the batch, collecting errors
// instead of stopping at the first one. A failing handler never
// prevents later handlers from running.
func (q *Events) Flush() error {
	return errors.Join(Flush(q)...)
}

func Flush(queue *Events) (errs []error) {
	for _, ev := range queue.events {
		err := ev()
		if err != nil {
			errs = append(errs, err)
		}
	}
	queue.events = nil
	return errs
}
