// Package util holds small concurrency helpers.
package util

import (
	"context"
	"sync"
)

// Event is a one-shot signal. Once notified it stays notified.
type Event struct {
	c    chan struct{}
	once sync.Once
}

func NewEvent() *Event {
	return &Event{
		c: make(chan struct{}),
	}
}

func (e *Event) Notify() {
	e.once.Do(func() { close(e.c) })
}

// Done is closed once the event is notified.
func (e *Event) Done() <-chan struct{} {
	return e.c
}

func (e *Event) Wait() {
	<-e.c
}

// WaitContext waits for the event or ctx, whichever comes first.
func (e *Event) WaitContext(ctx context.Context) error {
	select {
	case <-e.c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Event) HasBeenNotified() bool {
	select {
	case <-e.c:
		return true
	default:
		return false
	}
}
