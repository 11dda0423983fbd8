// Package quad holds the frame-space geometry shared by detection, rendering and
// perspective correction. It has no cgo dependencies.
package quad

import (
	"image"
	"math"
	"sort"
)

// Point is a position in frame pixel coordinates, origin at the top left.
type Point struct {
	X, Y float64
}

func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Image rounds to the nearest integer pixel.
func (p Point) Image() image.Point {
	return image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// Quad is a candidate document boundary. Corners are not guaranteed to form a
// convex or axis aligned shape.
type Quad struct {
	TopLeft, TopRight, BottomLeft, BottomRight Point
}

// FromRect returns the quad covering r exactly.
func FromRect(r image.Rectangle) Quad {
	return Quad{
		TopLeft:     Pt(float64(r.Min.X), float64(r.Min.Y)),
		TopRight:    Pt(float64(r.Max.X), float64(r.Min.Y)),
		BottomLeft:  Pt(float64(r.Min.X), float64(r.Max.Y)),
		BottomRight: Pt(float64(r.Max.X), float64(r.Max.Y)),
	}
}

// Points returns the corners in drawing order (clockwise from the top left), which
// is the order polygon fills expect.
func (q Quad) Points() [4]Point {
	return [4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// ImagePoints is Points rounded to pixels.
func (q Quad) ImagePoints() []image.Point {
	ps := q.Points()
	out := make([]image.Point, len(ps))
	for i, p := range ps {
		out[i] = p.Image()
	}
	return out
}

// Bounds returns the smallest integer rectangle containing every corner.
func (q Quad) Bounds() image.Rectangle {
	ps := q.Points()
	minX, minY := ps[0].X, ps[0].Y
	maxX, maxY := minX, minY
	for _, p := range ps[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	)
}

// Area is the absolute shoelace area of the polygon. Self intersecting quads
// report the difference of their lobes.
func (q Quad) Area() float64 {
	ps := q.Points()
	var s float64
	for i := range ps {
		j := (i + 1) % len(ps)
		s += ps[i].X*ps[j].Y - ps[j].X*ps[i].Y
	}
	return math.Abs(s) / 2
}

// Convex reports whether the corners, taken in drawing order, turn consistently.
func (q Quad) Convex() bool {
	ps := q.Points()
	sign := 0
	for i := range ps {
		a, b, c := ps[i], ps[(i+1)%4], ps[(i+2)%4]
		cross := (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
		switch {
		case cross > 0:
			if sign < 0 {
				return false
			}
			sign = 1
		case cross < 0:
			if sign > 0 {
				return false
			}
			sign = -1
		}
	}
	return sign != 0
}

// Aspect returns the width to height ratio of the bounding box, or 0 for a
// degenerate quad.
func (q Quad) Aspect() float64 {
	b := q.Bounds()
	if b.Dy() == 0 {
		return 0
	}
	return float64(b.Dx()) / float64(b.Dy())
}

// Order assigns four unordered corner points to their quad positions. The two
// topmost points become the top edge, each edge is then split left/right.
func Order(pts [4]Point) Quad {
	s := pts
	sort.SliceStable(s[:], func(i, j int) bool {
		return s[i].Y < s[j].Y
	})
	top, bottom := s[:2], s[2:]
	if top[0].X > top[1].X {
		top[0], top[1] = top[1], top[0]
	}
	if bottom[0].X > bottom[1].X {
		bottom[0], bottom[1] = bottom[1], bottom[0]
	}
	return Quad{
		TopLeft:     top[0],
		TopRight:    top[1],
		BottomLeft:  bottom[0],
		BottomRight: bottom[1],
	}
}
