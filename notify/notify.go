// Package notify fans session and capture events out to listeners.
package notify

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"doccam/store"
	"doccam/video"
)

type Kind string

const (
	KindState   Kind = "state"
	KindFailed  Kind = "failed"
	KindStored  Kind = "stored"
	KindDeleted Kind = "deleted"
)

// Notification is sent to all NotifyListeners registered with Notifier.
type Notification struct {
	Kind       Kind
	TimeString string
	Timestamp  int64

	Session string `json:",omitempty"`
	State   string `json:",omitempty"`
	// Identifier is the capture ID for stored and deleted captures.
	Identifier string `json:",omitempty"`
	Error      string `json:",omitempty"`
}

type NotifyListener interface {
	Notify(n *Notification) error
}

// Notifier implements video.Listener, video.FailureListener and
// store.Listener.
type Notifier struct {
	Listeners []NotifyListener

	// Now is replaceable for tests.
	Now func() time.Time

	last map[string]video.State
	l    sync.Mutex
}

func NewNotifier(listeners ...NotifyListener) *Notifier {
	return &Notifier{
		Listeners: listeners,
		Now:       time.Now,
		last:      make(map[string]video.State),
	}
}

func (n *Notifier) send(notification *Notification) {
	ts := n.Now()
	notification.TimeString = ts.Format("3:04:05 PM")
	notification.Timestamp = ts.Unix()
	for _, l := range n.Listeners {
		if err := l.Notify(notification); err != nil {
			log.Errorf("Failed to send notification: %v", err)
		}
	}
}

// StateChanged forwards state changes, once per distinct state per session.
func (n *Notifier) StateChanged(session string, s video.State) {
	n.l.Lock()
	if prev, ok := n.last[session]; ok && prev == s {
		n.l.Unlock()
		return
	}
	n.last[session] = s
	n.l.Unlock()

	n.send(&Notification{Kind: KindState, Session: session, State: s.String()})
}

// EndSession forgets the state of a finished session.
func (n *Notifier) EndSession(session string) {
	n.l.Lock()
	defer n.l.Unlock()
	delete(n.last, session)
}

func (n *Notifier) CaptureFailed(err error) {
	notification := &Notification{Kind: KindFailed, Error: err.Error()}
	var ce *video.CaptureError
	if errors.As(err, &ce) {
		notification.Session = ce.Session
		notification.Error = ce.Err.Error()
	}
	n.send(notification)
}

func (n *Notifier) CaptureStored(r *store.Record) {
	n.send(&Notification{Kind: KindStored, Session: r.Session, Identifier: r.ID})
}

func (n *Notifier) CaptureDeleted(r *store.Record) {
	n.send(&Notification{Kind: KindDeleted, Identifier: r.ID})
}
