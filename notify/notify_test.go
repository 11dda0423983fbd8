package notify

import (
	"errors"
	"testing"
	"time"

	"doccam/store"
	"doccam/video"
)

type collector struct {
	got []Notification
}

func (c *collector) Notify(n *Notification) error {
	c.got = append(c.got, *n)
	return nil
}

type failing struct{}

func (failing) Notify(n *Notification) error {
	return errors.New("unreachable")
}

func TestNotifier(t *testing.T) {
	c := &collector{}
	n := NewNotifier(failing{}, c)
	at := time.Date(2022, 4, 9, 15, 4, 5, 0, time.UTC)
	n.Now = func() time.Time { return at }

	n.StateChanged("s1", video.StateArmed)
	n.StateChanged("s1", video.StateArmed)
	n.StateChanged("s1", video.StateCapturing)
	n.CaptureFailed(&video.CaptureError{Session: "s1", Err: video.ErrNothingToCapture})
	n.CaptureFailed(errors.New("bare"))
	n.CaptureStored(&store.Record{ID: "c1", Session: "s1"})
	n.CaptureDeleted(&store.Record{ID: "c1"})

	want := []Notification{
		{Kind: KindState, Session: "s1", State: "armed"},
		{Kind: KindState, Session: "s1", State: "capturing"},
		{Kind: KindFailed, Session: "s1", Error: video.ErrNothingToCapture.Error()},
		{Kind: KindFailed, Error: "bare"},
		{Kind: KindStored, Session: "s1", Identifier: "c1"},
		{Kind: KindDeleted, Identifier: "c1"},
	}
	if len(c.got) != len(want) {
		t.Fatalf("got %d notifications, want %d: %+v", len(c.got), len(want), c.got)
	}
	for i, w := range want {
		w.TimeString = "3:04:05 PM"
		w.Timestamp = at.Unix()
		if c.got[i] != w {
			t.Errorf("notification %d: got %+v, want %+v", i, c.got[i], w)
		}
	}
}

func TestNotifierEndSession(t *testing.T) {
	c := &collector{}
	n := NewNotifier(c)
	n.StateChanged("s1", video.StateIdle)
	n.EndSession("s1")
	n.StateChanged("s1", video.StateIdle)
	if len(c.got) != 2 {
		t.Errorf("got %d notifications, want 2", len(c.got))
	}
}
