package sink

import (
	"image"

	"gocv.io/x/gocv"
)

// Surface is a display destination for rendered preview frames, such as an
// MJPEG stream or a local window.
type Surface interface {
	// Size is the full drawable size of the surface.
	Size() image.Point

	// Region is the rectangle within Size that frame content is fit into.
	// Anything outside it is cleared.
	Region() image.Rectangle

	// Context returns the rendering context that must be current before Put.
	Context() *Context

	// Put displays a Size()-sized BGRA image. The caller keeps ownership of m.
	Put(m gocv.Mat)

	// Close should be called to finalize the Surface.
	Close()
}

// FullRegion returns a region covering the whole of size.
func FullRegion(size image.Point) image.Rectangle {
	return image.Rectangle{Max: size}
}
