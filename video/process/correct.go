package process

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"doccam/video/quad"
	"doccam/video/source"
)

// ErrDegenerateQuad is returned when a quad has no area to correct.
var ErrDegenerateQuad = errors.New("quadrilateral has zero-size bounds")

// Corrector undoes perspective skew of a detected document.
type Corrector interface {
	Correct(f source.Frame, q quad.Quad) (gocv.Mat, error)
}

// PerspectiveCorrector warps a quad onto an upright rectangle the size of its
// bounding box, then rotates 90 degrees clockwise to undo the fixed portrait
// capture orientation. A W×H bounding box yields an H-wide, W-tall image.
type PerspectiveCorrector struct{}

func (PerspectiveCorrector) Correct(f source.Frame, q quad.Quad) (gocv.Mat, error) {
	b := q.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return gocv.Mat{}, fmt.Errorf("correct %+v: %w", q, ErrDegenerateQuad)
	}
	w, h := float32(b.Dx()), float32(b.Dy())

	src := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		point2f(q.TopLeft),
		point2f(q.TopRight),
		point2f(q.BottomLeft),
		point2f(q.BottomRight),
	})
	defer src.Close()
	dst := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: w, Y: 0},
		{X: 0, Y: h},
		{X: w, Y: h},
	})
	defer dst.Close()

	m := gocv.GetPerspectiveTransform2f(src, dst)
	defer m.Close()

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpPerspective(f.Mat, &warped, m, image.Point{X: b.Dx(), Y: b.Dy()})

	out := gocv.NewMat()
	gocv.Rotate(warped, &out, gocv.Rotate90Clockwise)
	return out, nil
}

func point2f(p quad.Point) gocv.Point2f {
	return gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
}
