package source

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// maxReadFailures is the number of consecutive failed reads after which the
// stream is considered finished (end of file, unplugged camera).
const maxReadFailures = 100

type VideoCaptureOptions struct {
	// Devices lists capture candidates in order of preference. Numeric entries
	// are device IDs, anything else is opened as a file or stream URI.
	Devices []string

	// Requested frame size. Zero leaves the device default.
	Width, Height int

	// Portrait rotates landscape frames 90 degrees clockwise so every frame is
	// delivered upright in portrait orientation.
	Portrait bool
}

// VideoCapture is a Source backed by an OpenCV capture device.
type VideoCapture struct {
	opts VideoCaptureOptions
	pool *MatPool

	c    chan Frame
	size image.Point

	done     chan bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewVideoCapture(opts VideoCaptureOptions) *VideoCapture {
	return &VideoCapture{
		opts: opts,
		pool: NewMatPool(),
		c:    make(chan Frame),
		done: make(chan bool),
	}
}

func openDevice(d string) (*gocv.VideoCapture, error) {
	if id, err := strconv.Atoi(d); err == nil {
		return gocv.VideoCaptureDevice(id)
	}
	return gocv.VideoCaptureFile(d)
}

// open tries each candidate device in order, returning the first one that
// opens and produces a frame.
func (v *VideoCapture) open(first *gocv.Mat) (*gocv.VideoCapture, error) {
	for _, d := range v.opts.Devices {
		cap, err := openDevice(d)
		if err != nil {
			log.WithField("device", d).Warnf("Failed to open capture device: %v", err)
			continue
		}
		if !cap.IsOpened() {
			log.WithField("device", d).Warn("Capture device did not open")
			cap.Close()
			continue
		}
		if v.opts.Width > 0 && v.opts.Height > 0 {
			cap.Set(gocv.VideoCaptureFrameWidth, float64(v.opts.Width))
			cap.Set(gocv.VideoCaptureFrameHeight, float64(v.opts.Height))
		}
		if ok := cap.Read(first); !ok || first.Empty() {
			log.WithField("device", d).Warn("Capture device produced no frame")
			cap.Close()
			continue
		}
		log.WithField("device", d).Infof("Opened capture device at %dx%d", first.Cols(), first.Rows())
		return cap, nil
	}
	return nil, fmt.Errorf("tried %d candidates: %w", len(v.opts.Devices), ErrNoDevice)
}

// convert writes raw into dst as BGRA, rotating to portrait if configured.
func (v *VideoCapture) convert(raw gocv.Mat, tmp, dst *gocv.Mat) {
	if !v.opts.Portrait || raw.Cols() <= raw.Rows() {
		gocv.CvtColor(raw, dst, gocv.ColorBGRToBGRA)
		return
	}
	gocv.CvtColor(raw, tmp, gocv.ColorBGRToBGRA)
	gocv.Rotate(*tmp, dst, gocv.Rotate90Clockwise)
}

func (v *VideoCapture) Start(ctx context.Context) error {
	raw := gocv.NewMat()
	cap, err := v.open(&raw)
	if err != nil {
		raw.Close()
		return err
	}

	v.size = image.Point{X: raw.Cols(), Y: raw.Rows()}
	if v.opts.Portrait && v.size.X > v.size.Y {
		v.size = image.Point{X: v.size.Y, Y: v.size.X}
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer cap.Close()
		defer raw.Close()
		defer close(v.c)

		tmp := gocv.NewMat()
		defer tmp.Close()

		var seq uint64
		failures := 0
		for {
			select {
			case <-v.done:
				return
			case <-ctx.Done():
				return
			default:
			}

			// The first frame was read while probing the device.
			if seq > 0 {
				if ok := cap.Read(&raw); !ok || raw.Empty() {
					failures += 1
					if failures >= maxReadFailures {
						log.Errorf("Capture read failed %d times, ending stream", failures)
						return
					}
					time.Sleep(time.Millisecond)
					continue
				}
			}
			failures = 0
			seq += 1

			f := Frame{
				Mat:  v.pool.NewMat(),
				Time: time.Now(),
				Seq:  seq,
				pool: v.pool,
			}
			v.convert(raw, &tmp, &f.Mat)
			framesCaptured.Inc()

			select {
			case v.c <- f:
			case <-v.done:
				f.Release()
				return
			default:
				// Consumer still busy with the previous frame.
				framesDropped.Inc()
				f.Release()
			}
		}
	}()
	return nil
}

func (v *VideoCapture) Frames() <-chan Frame {
	return v.c
}

func (v *VideoCapture) Size() image.Point {
	return v.size
}

func (v *VideoCapture) Stop() {
	v.stopOnce.Do(func() {
		close(v.done)
		v.wg.Wait()
		v.pool.Close()
		log.Infof("Capture stopped")
	})
}
