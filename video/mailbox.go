package video

import (
	"sync"

	"doccam/video/quad"
	"doccam/video/source"
)

// Snapshot is the frame and detections remembered for a pending capture. The
// frame is a private clone owned by the snapshot.
type Snapshot struct {
	Frame source.Frame
	Quads []quad.Quad
}

func (s *Snapshot) Release() {
	s.Frame.Release()
}

// Mailbox is a single-slot hand-off for the latest snapshot between the frame
// worker and the capture timer. A new snapshot replaces, and releases, the old.
type Mailbox struct {
	l          sync.Mutex
	s          *Snapshot
	overwrites uint64
}

// Put stores s, releasing any snapshot it replaces.
func (m *Mailbox) Put(s *Snapshot) {
	m.l.Lock()
	defer m.l.Unlock()
	if m.s != nil {
		m.overwrites += 1
		m.s.Release()
	}
	m.s = s
}

// Clear empties the mailbox.
func (m *Mailbox) Clear() {
	m.Put(nil)
}

// Take removes and returns the current snapshot, or nil. The caller owns it.
func (m *Mailbox) Take() *Snapshot {
	m.l.Lock()
	defer m.l.Unlock()
	s := m.s
	m.s = nil
	return s
}

// Overwrites is the number of snapshots replaced before being taken.
func (m *Mailbox) Overwrites() uint64 {
	m.l.Lock()
	defer m.l.Unlock()
	return m.overwrites
}
