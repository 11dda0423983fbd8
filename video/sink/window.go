package sink

import (
	"image"

	"gocv.io/x/gocv"
)

// Window is a local preview Surface. HighGUI is not thread safe, so the native
// window is created by the first Put and every later call must come from that
// same locked OS thread (see video.ControllerOptions.LockOSThread).
type Window struct {
	name   string
	window *gocv.Window
	size   image.Point
	region image.Rectangle
	ctx    *Context
}

func NewWindow(name string, size image.Point, region image.Rectangle) *Window {
	w := &Window{
		name:   name,
		size:   size,
		region: region,
	}
	w.ctx = NewContext("window:"+name, func() {
		w.open().ResizeWindow(size.X, size.Y)
	})
	return w
}

func (w *Window) open() *gocv.Window {
	if w.window == nil {
		w.window = gocv.NewWindow(w.name)
	}
	return w.window
}

func (w *Window) Size() image.Point       { return w.size }
func (w *Window) Region() image.Rectangle { return w.region }
func (w *Window) Context() *Context       { return w.ctx }

func (w *Window) Put(input gocv.Mat) {
	win := w.open()
	win.IMShow(input)
	win.WaitKey(1)
}

func (w *Window) Close() {
	if w.window != nil {
		w.window.Close()
	}
}
