package video

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"doccam/video/process"
	"doccam/video/quad"
	"doccam/video/source"
)

// ErrNothingToCapture is reported when the capture timer fires with no
// detection remembered.
var ErrNothingToCapture = errors.New("no detection to capture")

type State int32

const (
	StateIdle State = iota
	StateArmed
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateCapturing:
		return "capturing"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// LossPolicy decides what an empty detection does to a pending capture.
type LossPolicy int

const (
	// KeepArmedOnLoss forgets the remembered detection but lets the timer run.
	KeepArmedOnLoss LossPolicy = iota
	// CancelOnLoss also stops the timer and returns to idle.
	CancelOnLoss
)

func (p LossPolicy) String() string {
	if p == CancelOnLoss {
		return "cancel"
	}
	return "keep"
}

// ParseLossPolicy accepts "keep" or "cancel".
func ParseLossPolicy(s string) (LossPolicy, error) {
	switch s {
	case "", "keep":
		return KeepArmedOnLoss, nil
	case "cancel":
		return CancelOnLoss, nil
	}
	return KeepArmedOnLoss, fmt.Errorf("unknown loss policy %q", s)
}

type SchedulerOptions struct {
	// Dwell is the wait between the first detection and the capture.
	Dwell time.Duration

	LossPolicy LossPolicy

	// RearmAfterFailure returns to idle after a capture that had nothing to
	// capture. Otherwise the scheduler stays in StateCapturing for good.
	RearmAfterFailure bool
}

// Outcome is the result of one capture attempt. Exactly one of Image and Err is
// set; the receiver owns Image.
type Outcome struct {
	Image gocv.Mat
	Quad  quad.Quad
	// Time the captured frame was taken.
	FrameTime time.Time
	Err       error

	ArmedAt, FiredAt time.Time
}

// Scheduler arms a one-shot capture timer when a quadrilateral is first seen
// and, when it fires, corrects the most recently remembered detection.
type Scheduler struct {
	opts      SchedulerOptions
	corrector process.Corrector
	mailbox   Mailbox

	// OnState, if set, is called from the scheduler goroutine on every state
	// change. It must not block.
	onState func(State)

	state   int32
	observe chan bool
	out     chan Outcome

	quit     chan bool
	exited   chan bool
	quitOnce sync.Once
}

func NewScheduler(opts SchedulerOptions, corrector process.Corrector, onState func(State)) *Scheduler {
	s := &Scheduler{
		opts:      opts,
		corrector: corrector,
		onState:   onState,
		observe:   make(chan bool),
		out:       make(chan Outcome),
		quit:      make(chan bool),
		exited:    make(chan bool),
	}
	go s.loop()
	return s
}

func (s *Scheduler) setState(st State) {
	if State(atomic.SwapInt32(&s.state, int32(st))) == st {
		return
	}
	log.Debugf("Capture scheduler %v", st)
	schedulerState.Set(float64(st))
	if s.onState != nil {
		s.onState(st)
	}
}

// State returns the current capture state.
func (s *Scheduler) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Scheduler) loop() {
	defer close(s.exited)

	var timer *time.Timer
	var fire <-chan time.Time
	var armedAt time.Time

	for {
		select {
		case found := <-s.observe:
			state := s.State()
			switch {
			case found && state == StateIdle:
				armedAt = time.Now()
				timer = time.NewTimer(s.opts.Dwell)
				fire = timer.C
				s.setState(StateArmed)
			case !found && state == StateArmed && s.opts.LossPolicy == CancelOnLoss:
				timer.Stop()
				timer, fire = nil, nil
				s.setState(StateIdle)
			case state == StateCapturing:
				// The worker saw armed just before the timer fired and stored
				// its snapshot after capture took the mailbox. Nothing will
				// read it now.
				s.mailbox.Clear()
			}

		case firedAt := <-fire:
			timer, fire = nil, nil
			s.setState(StateCapturing)
			o := s.capture()
			o.ArmedAt, o.FiredAt = armedAt, firedAt
			if o.Err != nil && s.opts.RearmAfterFailure {
				s.setState(StateIdle)
			}
			select {
			case s.out <- o:
			case <-s.quit:
				if o.Err == nil {
					o.Image.Close()
				}
				return
			}

		case <-s.quit:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (s *Scheduler) capture() Outcome {
	snap := s.mailbox.Take()
	if snap == nil {
		capturesTotal.WithLabelValues("empty").Inc()
		return Outcome{Err: ErrNothingToCapture}
	}
	defer snap.Release()

	var o Outcome
	var lastErr error
	have := false
	// Every remembered quad is corrected; the last success is kept.
	for _, q := range snap.Quads {
		img, err := s.corrector.Correct(snap.Frame, q)
		if err != nil {
			log.Warnf("Perspective correction failed: %v", err)
			lastErr = err
			continue
		}
		if have {
			o.Image.Close()
		}
		o.Image, o.Quad, have = img, q, true
	}
	if !have {
		capturesTotal.WithLabelValues("error").Inc()
		return Outcome{Err: fmt.Errorf("capture frame %d: %w", snap.Frame.Seq, lastErr)}
	}
	o.FrameTime = snap.Frame.Time
	capturesTotal.WithLabelValues("ok").Inc()
	return o
}

// Observe records the detection result for frame f. Non-empty results replace
// the remembered snapshot (f is cloned) and arm the timer if idle; empty
// results clear it. Observe is called from the frame worker.
func (s *Scheduler) Observe(f source.Frame, quads []quad.Quad) {
	select {
	case <-s.quit:
		return
	default:
	}
	if s.State() == StateCapturing {
		// Terminal, or mid-capture; nothing will read the mailbox.
		return
	}
	found := len(quads) > 0
	if found {
		s.mailbox.Put(&Snapshot{Frame: f.Clone(), Quads: quads})
	} else {
		s.mailbox.Clear()
	}
	select {
	case s.observe <- found:
	case <-s.quit:
	}
}

// Outcomes delivers the result of every capture attempt.
func (s *Scheduler) Outcomes() <-chan Outcome {
	return s.out
}

// Close stops the timer and releases any remembered snapshot.
func (s *Scheduler) Close() {
	s.quitOnce.Do(func() {
		close(s.quit)
		<-s.exited
		s.mailbox.Clear()
	})
}
