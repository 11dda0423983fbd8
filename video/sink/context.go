package sink

import (
	"sync"
)

var (
	currentLock sync.Mutex
	current     *Context
)

// Context is the rendering state a Surface draws with. Only one Context is
// current at a time; drawing must switch to the surface's own context first.
type Context struct {
	Name string

	// bind is invoked when the context becomes current.
	bind func()
}

func NewContext(name string, bind func()) *Context {
	return &Context{Name: name, bind: bind}
}

// Current returns the active context, or nil.
func Current() *Context {
	currentLock.Lock()
	defer currentLock.Unlock()
	return current
}

// IsCurrent reports whether c is the active context.
func (c *Context) IsCurrent() bool {
	return Current() == c
}

// MakeCurrent activates c. It must be called from the goroutine that draws.
func (c *Context) MakeCurrent() {
	currentLock.Lock()
	defer currentLock.Unlock()
	if current == c {
		return
	}
	current = c
	if c.bind != nil {
		c.bind()
	}
}
