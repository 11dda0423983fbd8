package util

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEvent(t *testing.T) {
	e := NewEvent()
	if e.HasBeenNotified() {
		t.Fatal("new event already notified")
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Wait()
		}()
	}

	e.Notify()
	e.Notify()
	wg.Wait()

	if !e.HasBeenNotified() {
		t.Error("event not notified")
	}
	select {
	case <-e.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestEventWaitContext(t *testing.T) {
	e := NewEvent()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := e.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitContext: got %v, want DeadlineExceeded", err)
	}

	e.Notify()
	if err := e.WaitContext(context.Background()); err != nil {
		t.Errorf("WaitContext after Notify: got %v", err)
	}
}
