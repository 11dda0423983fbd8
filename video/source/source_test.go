package source

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gocv.io/x/gocv"
)

func TestMatPoolRecycles(t *testing.T) {
	p := NewMatPool()
	defer p.Close()

	m := p.NewMat()
	p.ReleaseMat(m)
	m = p.NewMat()
	defer p.ReleaseMat(m)

	if got := p.Allocated(); got != 1 {
		t.Errorf("Allocated: got %d, want 1", got)
	}
}

func TestMatPoolCloseWaitsForOutstanding(t *testing.T) {
	p := NewMatPool()
	idle := p.NewMat()
	held := p.NewMat()
	p.ReleaseMat(idle)

	p.Close()
	p.Close()
	if got := p.Allocated(); got != 1 {
		t.Fatalf("Allocated after Close: got %d, want 1 outstanding", got)
	}
	select {
	case <-p.done:
		t.Fatal("pool exited with a Mat still outstanding")
	default:
	}

	p.ReleaseMat(held)
	select {
	case <-p.done:
	case <-time.After(time.Second):
		t.Fatal("pool goroutine did not exit after the last release")
	}

	// Late callers don't block once the pool is gone.
	m := p.NewMat()
	p.ReleaseMat(m)
	if got := p.Allocated(); got != 0 {
		t.Errorf("Allocated after exit: got %d, want 0", got)
	}
}

func TestFrameCloneIsIndependent(t *testing.T) {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 255), 4, 6, gocv.MatTypeCV8UC4)
	f := NewFrame(m, 7)
	defer f.Release()

	c := f.Clone()
	defer c.Release()

	f.Mat.SetUCharAt(0, 0, 99)
	if got := c.Mat.GetUCharAt(0, 0); got != 1 {
		t.Errorf("clone shares pixels with original: got %d, want 1", got)
	}
	if c.Seq != 7 {
		t.Errorf("Seq: got %d, want 7", c.Seq)
	}
	if sz := c.Size(); sz.X != 6 || sz.Y != 4 {
		t.Errorf("Size: got %v, want (6,4)", sz)
	}
}

func TestPooledFrameRelease(t *testing.T) {
	p := NewMatPool()
	defer p.Close()

	f := Frame{Mat: p.NewMat(), pool: p}
	f.Release()

	if got := p.Allocated(); got != 1 {
		t.Errorf("Allocated after release: got %d, want 1", got)
	}
}

func TestVideoCaptureNoDevice(t *testing.T) {
	tests := []struct {
		name    string
		devices []string
	}{
		{name: "no candidates"},
		{name: "missing file", devices: []string{"/nonexistent/doccam-test.mp4"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := NewVideoCapture(VideoCaptureOptions{Devices: tc.devices})
			defer v.Stop()
			err := v.Start(context.Background())
			if !errors.Is(err, ErrNoDevice) {
				t.Errorf("Start: got %v, want ErrNoDevice", err)
			}
		})
	}
}

// writeClip writes n landscape BGR frames of size w×h to an MJPEG AVI.
func writeClip(t *testing.T, n, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.avi")
	vw, err := gocv.VideoWriterFile(path, "MJPG", 30, w, h, true)
	if err != nil {
		t.Skipf("no video writer available: %v", err)
	}
	defer vw.Close()
	if !vw.IsOpened() {
		t.Skip("video writer did not open")
	}
	for i := 0; i < n; i++ {
		m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(i*5), 80, 160, 0), h, w, gocv.MatTypeCV8UC3)
		err := vw.Write(m)
		m.Close()
		if err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestVideoCaptureDropsWhileBusy(t *testing.T) {
	const written = 40
	path := writeClip(t, written, 64, 48)

	v := NewVideoCapture(VideoCaptureOptions{Devices: []string{path}, Portrait: true})
	defer v.Stop()
	dropped := testutil.ToFloat64(framesDropped)
	if err := v.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got, want := v.Size(), image.Pt(48, 64); got != want {
		t.Errorf("Size: got %v, want %v", got, want)
	}

	var first Frame
	select {
	case first = <-v.Frames():
	case <-time.After(5 * time.Second):
		t.Fatal("no frame delivered")
	}
	if first.Mat.Cols() != 48 || first.Mat.Rows() != 64 || first.Mat.Channels() != 4 {
		t.Errorf("frame: got %dx%d with %d channels, want 48x64 BGRA",
			first.Mat.Cols(), first.Mat.Rows(), first.Mat.Channels())
	}

	// Stay busy with the first frame while the reader runs through the clip.
	time.Sleep(300 * time.Millisecond)
	if got := v.pool.Allocated(); got > 3 {
		t.Errorf("Allocated while busy: got %d, want at most 3", got)
	}
	first.Release()

	seqs := []uint64{first.Seq}
	deadline := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case f, ok := <-v.Frames():
			if !ok {
				done = true
				continue
			}
			seqs = append(seqs, f.Seq)
			f.Release()
		case <-deadline:
			t.Fatal("stream did not end")
		}
	}

	if len(seqs) >= written {
		t.Errorf("received %d of %d frames; busy frames should be dropped", len(seqs), written)
	}
	if len(seqs) > 1 && seqs[1] == seqs[0]+1 {
		t.Errorf("Seq after busy period: got %d, want a gap after %d", seqs[1], seqs[0])
	}
	if testutil.ToFloat64(framesDropped) <= dropped {
		t.Error("no frames counted as dropped")
	}
}
