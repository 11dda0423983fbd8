package source

import (
	"context"
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// ErrNoDevice is returned by Start when none of the configured capture devices
// could be opened.
var ErrNoDevice = errors.New("no usable capture device")

// Frame is one camera sample in 32-bit BGRA. A Frame must not be modified once
// produced; callers that keep it past the current processing cycle must Clone it.
type Frame struct {
	Mat  gocv.Mat
	Time time.Time
	Seq  uint64

	pool *MatPool
}

// Size returns the frame dimensions as width, height.
func (f Frame) Size() image.Point {
	return image.Point{X: f.Mat.Cols(), Y: f.Mat.Rows()}
}

// Bounds is the frame rectangle anchored at the origin.
func (f Frame) Bounds() image.Rectangle {
	return image.Rectangle{Max: f.Size()}
}

// Clone returns a deep copy not tied to any pool.
func (f Frame) Clone() Frame {
	return Frame{
		Mat:  f.Mat.Clone(),
		Time: f.Time,
		Seq:  f.Seq,
	}
}

// Release hands the underlying Mat back to its pool, or closes it.
func (f Frame) Release() {
	if f.pool != nil {
		f.pool.ReleaseMat(f.Mat)
		return
	}
	f.Mat.Close()
}

// NewFrame wraps m without a pool; Release closes the Mat.
func NewFrame(m gocv.Mat, seq uint64) Frame {
	return Frame{
		Mat:  m,
		Time: time.Now(),
		Seq:  seq,
	}
}

// Source defines a stream of frames, such as a camera.
type Source interface {
	// Start opens the device and begins delivering frames. It fails without
	// starting if the device cannot be configured.
	Start(ctx context.Context) error

	// Frames returns the channel frames are delivered on. There is a single
	// consumer, which owns (and must Release) every frame it receives. Frames
	// offered while the consumer is busy are dropped, never queued.
	Frames() <-chan Frame

	// Size returns the size of delivered frames.
	Size() image.Point

	// Stop halts the stream permanently. It is safe to call more than once.
	Stop()
}
