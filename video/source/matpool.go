package source

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// maxPoolAllocations bounds the number of live Mats. The pipeline holds at most
// a handful of frames, so hitting this means a frame isn't being released.
const maxPoolAllocations = 64

// MatPool recycles frame buffers so steady-state capture doesn't allocate.
type MatPool struct {
	new   chan chan gocv.Mat
	free  chan gocv.Mat
	count chan chan int
	close chan bool
	// done is closed once the pool is closed and every Mat it handed out has
	// come back.
	done chan bool

	closeOnce sync.Once

	allocated int
	available []gocv.Mat
}

func NewMatPool() *MatPool {
	p := &MatPool{
		new:   make(chan chan gocv.Mat),
		free:  make(chan gocv.Mat),
		count: make(chan chan int),
		close: make(chan bool),
		done:  make(chan bool),
	}
	go p.loop()
	return p
}

func (p *MatPool) loop() {
	defer close(p.done)
	closec := p.close
	closed := false
	for {
		if closed && p.allocated == 0 {
			return
		}
		select {
		case <-closec:
			closed, closec = true, nil
			for _, m := range p.available {
				m.Close()
				p.allocated -= 1
			}
			p.available = nil
		case m := <-p.free:
			if closed {
				m.Close()
				p.allocated -= 1
			} else {
				p.available = append(p.available, m)
			}
		case r := <-p.new:
			var m gocv.Mat
			if len(p.available) > 0 {
				m, p.available = p.available[0], p.available[1:]
			} else {
				m = gocv.NewMat()
				p.allocated += 1
				if p.allocated > maxPoolAllocations {
					log.Warnf("MatPool holds %d allocations. Perhaps a Frame isn't being released?", p.allocated)
				}
			}
			r <- m
		case c := <-p.count:
			c <- p.allocated
		}
	}
}

// NewMat returns a recycled Mat. After the pool has shut down the Mat is a
// fresh one the pool does not track.
func (p *MatPool) NewMat() gocv.Mat {
	r := make(chan gocv.Mat)
	select {
	case p.new <- r:
		return <-r
	case <-p.done:
		return gocv.NewMat()
	}
}

func (p *MatPool) ReleaseMat(m gocv.Mat) {
	select {
	case p.free <- m:
	case <-p.done:
		m.Close()
	}
}

// Allocated returns the number of Mats created by the pool and not yet closed.
func (p *MatPool) Allocated() int {
	c := make(chan int)
	select {
	case p.count <- c:
		return <-c
	case <-p.done:
		return 0
	}
}

// Close frees idle Mats. Mats released afterwards are closed immediately, and
// the pool goroutine exits once the last one is back. Close is idempotent.
func (p *MatPool) Close() {
	p.closeOnce.Do(func() {
		select {
		case p.close <- true:
		case <-p.done:
		}
	})
}
