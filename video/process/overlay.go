package process

import (
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"doccam/video/quad"
	"doccam/video/sink"
	"doccam/video/source"
)

var (
	// Highlight fill drawn over each detection.
	colorHighlight = color.RGBA{R: 17, G: 231, B: 255, A: 255}
	// Share of the highlight in the blended result.
	highlightAlpha = 0.5
)

// FitRect returns the largest rectangle inside src, centred, whose aspect ratio
// matches target. A wider source is cropped horizontally, a taller one
// vertically. Zero-area inputs return the empty rectangle.
func FitRect(src, target image.Rectangle) image.Rectangle {
	if src.Dx() <= 0 || src.Dy() <= 0 || target.Dx() <= 0 || target.Dy() <= 0 {
		return image.Rectangle{}
	}
	srcAR := float64(src.Dx()) / float64(src.Dy())
	targetAR := float64(target.Dx()) / float64(target.Dy())

	r := src
	if srcAR > targetAR {
		w := int(float64(src.Dy())*targetAR + 0.5)
		r.Min.X += (src.Dx() - w) / 2
		r.Max.X = r.Min.X + w
	} else {
		h := int(float64(src.Dx())/targetAR + 0.5)
		r.Min.Y += (src.Dy() - h) / 2
		r.Max.Y = r.Min.Y + h
	}
	return r
}

// Renderer composites detection highlights over frames for display.
type Renderer struct {
	highlight, blended gocv.Mat
	closed             bool
}

func NewRenderer() *Renderer {
	return &Renderer{
		highlight: gocv.NewMat(),
		blended:   gocv.NewMat(),
	}
}

// Composite returns the frame with every quad highlighted. The result is only
// valid until the next call. With no quads the frame's own Mat is returned.
func (r *Renderer) Composite(f source.Frame, quads []quad.Quad) gocv.Mat {
	if len(quads) == 0 {
		return f.Mat
	}
	f.Mat.CopyTo(&r.highlight)
	polys := make([][]image.Point, len(quads))
	for i, q := range quads {
		polys[i] = q.ImagePoints()
	}
	pv := gocv.NewPointsVectorFromPoints(polys)
	defer pv.Close()
	gocv.FillPoly(&r.highlight, pv, colorHighlight)

	// Outside the polygons both inputs are identical, so only the quads change.
	gocv.AddWeighted(f.Mat, 1-highlightAlpha, r.highlight, highlightAlpha, 0, &r.blended)
	return r.blended
}

// Render composites the frame and fits it into a new Mat the size of target.
// It returns false, and no Mat, when either the frame or target has zero area.
// The caller owns the returned Mat.
func (r *Renderer) Render(f source.Frame, quads []quad.Quad, target image.Rectangle) (gocv.Mat, bool) {
	if r.closed {
		return gocv.Mat{}, false
	}
	crop := FitRect(f.Bounds(), target)
	if crop.Empty() {
		renderSkipped.Inc()
		return gocv.Mat{}, false
	}
	start := time.Now()
	defer func() {
		renderDuration.Observe(time.Since(start).Seconds())
	}()

	composited := r.Composite(f, quads)
	region := composited.Region(crop)
	defer region.Close()

	out := gocv.NewMat()
	gocv.Resize(region, &out, target.Size(), 0, 0, gocv.InterpolationLinear)
	return out, true
}

// Draw renders into the surface's region, clearing the rest of the surface to
// black, and displays the result. The surface's context is made current first
// if another one is active. It returns false if nothing was drawn.
func (r *Renderer) Draw(s sink.Surface, f source.Frame, quads []quad.Quad, label string) bool {
	size := s.Size()
	region := s.Region().Intersect(sink.FullRegion(size))
	fitted, ok := r.Render(f, quads, region)
	if !ok {
		return false
	}
	defer fitted.Close()

	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 255), size.Y, size.X, gocv.MatTypeCV8UC4)
	defer canvas.Close()

	dst := canvas.Region(region)
	fitted.CopyTo(&dst)
	dst.Close()

	if label != "" {
		DrawLabel(&canvas, label)
	}

	if ctx := s.Context(); !ctx.IsCurrent() {
		ctx.MakeCurrent()
	}
	s.Put(canvas)
	return true
}

// Closed reports whether Close has been called. A closed renderer draws
// nothing.
func (r *Renderer) Closed() bool {
	return r.closed
}

func (r *Renderer) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.highlight.Close()
	r.blended.Close()
}
