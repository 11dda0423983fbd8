package video

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"doccam/util"
	"doccam/video/process"
	"doccam/video/quad"
	"doccam/video/sink"
	"doccam/video/source"
)

// Capture is a finished, perspective-corrected still.
type Capture struct {
	ID string
	// Session is the ID of the controller that produced the capture.
	Session string
	// Image is upright BGRA; the consumer owns it and must Close it.
	Image gocv.Mat
	Quad  quad.Quad
	Time  time.Time
}

// Consumer receives the captured image. It is called exactly once per
// successful session, from the goroutine running Controller.Run.
type Consumer interface {
	ImageCaptured(c Capture)
}

// FailureListener is optionally implemented by a Consumer to hear about
// capture attempts that produced nothing. err is a *CaptureError.
type FailureListener interface {
	CaptureFailed(err error)
}

// CaptureError is what FailureListeners receive: the failed attempt's error
// tagged with the session that made it.
type CaptureError struct {
	Session string
	Err     error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Session, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Listener observes session progress. Calls must not block.
type Listener interface {
	StateChanged(session string, s State)
}

type ControllerOptions struct {
	Source    source.Source
	Detector  process.Detector
	Renderer  *process.Renderer
	Corrector process.Corrector
	Surfaces  []sink.Surface

	Consumer  Consumer
	Listeners []Listener
	// Failures hear about failed capture attempts, in addition to the
	// Consumer when it implements FailureListener.
	Failures []FailureListener

	Scheduler SchedulerOptions

	// LockOSThread pins the frame worker to one OS thread. Required when a
	// surface uses a thread-bound UI toolkit, such as sink.Window.
	LockOSThread bool
}

// Controller runs one capture session: frames are detected and rendered until
// a capture succeeds, after which the source is stopped for good. A new
// Controller is needed for every session.
type Controller struct {
	ID string

	opts  ControllerOptions
	sched *Scheduler
	l     sync.Mutex

	// ownRenderer is set when the controller created the renderer and so must
	// close it.
	ownRenderer bool

	closed *util.Event
	ran    bool
}

func NewController(opts ControllerOptions) *Controller {
	own := opts.Renderer == nil
	if own {
		opts.Renderer = process.NewRenderer()
	}
	if opts.Corrector == nil {
		opts.Corrector = process.PerspectiveCorrector{}
	}
	return &Controller{
		ID:          uuid.NewString(),
		opts:        opts,
		ownRenderer: own,
		closed:      util.NewEvent(),
	}
}

// State returns the capture state of the running session.
func (c *Controller) State() State {
	c.l.Lock()
	defer c.l.Unlock()
	if c.sched == nil {
		return StateIdle
	}
	return c.sched.State()
}

// Wait blocks until the session has delivered its capture.
func (c *Controller) Wait() {
	c.closed.Wait()
}

// Closed reports whether the session has finished with a capture.
func (c *Controller) Closed() bool {
	return c.closed.HasBeenNotified()
}

func (c *Controller) stateChanged(s State) {
	for _, l := range c.opts.Listeners {
		l.StateChanged(c.ID, s)
	}
}

func (c *Controller) captureFailed(err error) {
	err = &CaptureError{Session: c.ID, Err: err}
	for _, fl := range c.opts.Failures {
		fl.CaptureFailed(err)
	}
	if fl, ok := c.opts.Consumer.(FailureListener); ok {
		fl.CaptureFailed(err)
	}
}

// Run starts the source and blocks until a capture is delivered (returning
// nil) or ctx is cancelled. A source that cannot start is fatal.
func (c *Controller) Run(ctx context.Context) error {
	if c.ran {
		return errors.New("controller already ran; create a new one per session")
	}
	c.ran = true

	clog := log.WithField("session", c.ID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.ownRenderer {
		defer c.opts.Renderer.Close()
	}

	if err := c.opts.Source.Start(ctx); err != nil {
		return fmt.Errorf("start source: %w", err)
	}
	clog.Infof("Capture session started at %v", c.opts.Source.Size())

	c.l.Lock()
	c.sched = NewScheduler(c.opts.Scheduler, c.opts.Corrector, c.stateChanged)
	c.l.Unlock()

	workerDone := make(chan bool)
	go c.work(ctx, workerDone)

	shutdown := func() {
		c.opts.Source.Stop()
		cancel()
		// Closing the scheduler first unblocks a worker parked in Observe.
		c.sched.Close()
		<-workerDone
		c.sched.mailbox.Clear()
	}

	for {
		select {
		case o := <-c.sched.Outcomes():
			if o.Err != nil {
				clog.Warnf("Capture produced no image: %v", o.Err)
				c.captureFailed(o.Err)
				continue
			}
			shutdown()
			clog.Infof("Captured %dx%d image after %v", o.Image.Cols(), o.Image.Rows(), o.FiredAt.Sub(o.ArmedAt))
			c.opts.Consumer.ImageCaptured(Capture{
				ID:      uuid.NewString(),
				Session: c.ID,
				Image:   o.Image,
				Quad:    o.Quad,
				Time:    o.FrameTime,
			})
			c.closed.Notify()
			return nil

		case <-ctx.Done():
			shutdown()
			clog.Infof("Capture session cancelled")
			return ctx.Err()
		}
	}
}

// work is the frame worker: detect, draw, then feed the scheduler.
func (c *Controller) work(ctx context.Context, done chan bool) {
	defer close(done)
	if c.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	frames := c.opts.Source.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				log.WithField("session", c.ID).Warn("Frame source ended")
				return
			}
			c.process(f)
			f.Release()
		}
	}
}

func (c *Controller) process(f source.Frame) {
	quads := c.opts.Detector.Detect(f)
	framesProcessed.Inc()
	detectionsTotal.Add(float64(len(quads)))

	label := c.sched.State().String()
	for _, s := range c.opts.Surfaces {
		c.opts.Renderer.Draw(s, f, quads, label)
	}
	c.sched.Observe(f, quads)
}
