package quad

import (
	"image"
	"math"
	"testing"
)

func TestFromRectBounds(t *testing.T) {
	r := image.Rect(10, 20, 110, 70)
	q := FromRect(r)
	if got := q.Bounds(); got != r {
		t.Errorf("Bounds: got %v, want %v", got, r)
	}
	if got := q.Area(); got != 5000 {
		t.Errorf("Area: got %v, want 5000", got)
	}
	if !q.Convex() {
		t.Error("rectangle should be convex")
	}
}

func TestBoundsFractional(t *testing.T) {
	q := Quad{
		TopLeft:     Pt(1.2, 2.7),
		TopRight:    Pt(9.5, 1.1),
		BottomLeft:  Pt(0.4, 8.0),
		BottomRight: Pt(10.01, 9.9),
	}
	want := image.Rect(0, 1, 11, 10)
	if got := q.Bounds(); got != want {
		t.Errorf("Bounds: got %v, want %v", got, want)
	}
}

func TestConvex(t *testing.T) {
	tests := []struct {
		name string
		q    Quad
		want bool
	}{
		{
			name: "skewed document",
			q: Quad{
				TopLeft: Pt(10, 5), TopRight: Pt(90, 15),
				BottomLeft: Pt(5, 95), BottomRight: Pt(85, 80),
			},
			want: true,
		},
		{
			name: "bow tie",
			q: Quad{
				TopLeft: Pt(0, 0), TopRight: Pt(10, 0),
				BottomLeft: Pt(10, 10), BottomRight: Pt(0, 10),
			},
			want: false,
		},
		{
			name: "collapsed",
			q:    Quad{},
			want: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.q.Convex(); got != tc.want {
				t.Errorf("Convex: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOrder(t *testing.T) {
	want := Quad{
		TopLeft: Pt(12, 8), TopRight: Pt(80, 10),
		BottomLeft: Pt(10, 70), BottomRight: Pt(84, 66),
	}
	shuffled := [4]Point{want.BottomRight, want.TopLeft, want.BottomLeft, want.TopRight}
	if got := Order(shuffled); got != want {
		t.Errorf("Order: got %+v, want %+v", got, want)
	}
}

func TestAspect(t *testing.T) {
	if got := FromRect(image.Rect(0, 0, 200, 100)).Aspect(); math.Abs(got-2) > 1e-9 {
		t.Errorf("Aspect: got %v, want 2", got)
	}
	if got := (Quad{}).Aspect(); got != 0 {
		t.Errorf("degenerate Aspect: got %v, want 0", got)
	}
}
