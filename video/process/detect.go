package process

import (
	"image"
	"math"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"doccam/video/quad"
	"doccam/video/sink"
	"doccam/video/source"
)

// Detector finds candidate document quadrilaterals in a frame. Calls are
// independent; no state is carried between frames.
type Detector interface {
	Detect(f source.Frame) []quad.Quad
}

type DetectorOptions struct {
	// AspectRatio is the preferred width/height of a detection. Candidates closer
	// to it are ranked first.
	AspectRatio float64

	// AspectTolerance rejects candidates whose aspect differs from AspectRatio by
	// more than this fraction. Zero disables the filter.
	AspectTolerance float64

	// MinAreaRatio is the smallest candidate area as a fraction of the frame.
	MinAreaRatio float64

	// MaxResults caps the number of detections. Zero returns all of them.
	MaxResults int

	// Canny hysteresis thresholds.
	CannyLow, CannyHigh float32
}

func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		AspectRatio:  1.0,
		MinAreaRatio: 0.05,
		CannyLow:     50,
		CannyHigh:    150,
	}
}

// ContourDetector finds quadrilaterals by approximating the contours of an edge
// map with polygons and keeping those with four vertices.
type ContourDetector struct {
	opts DetectorOptions

	// Debug, if set, receives the intermediate edge image.
	Debug *sink.MJPEGStreamPool

	gray, blur, edges, kernel gocv.Mat
}

func NewContourDetector(opts DetectorOptions) *ContourDetector {
	return &ContourDetector{
		opts:   opts,
		gray:   gocv.NewMat(),
		blur:   gocv.NewMat(),
		edges:  gocv.NewMat(),
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3}),
	}
}

type candidate struct {
	q         quad.Quad
	area      float64
	aspectErr float64
}

// Detect is not safe for concurrent use; the detector reuses scratch buffers.
func (d *ContourDetector) Detect(f source.Frame) []quad.Quad {
	if f.Mat.Empty() {
		return nil
	}
	start := time.Now()
	defer func() {
		detectDuration.Observe(time.Since(start).Seconds())
	}()

	gocv.CvtColor(f.Mat, &d.gray, gocv.ColorBGRAToGray)
	gocv.GaussianBlur(d.gray, &d.blur, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)
	gocv.Canny(d.blur, &d.edges, d.opts.CannyLow, d.opts.CannyHigh)
	// Close small gaps so document edges form a single contour.
	gocv.Dilate(d.edges, &d.edges, d.kernel)
	d.Debug.Put("edges", d.edges)

	contours := gocv.FindContours(d.edges, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer contours.Close()

	minArea := d.opts.MinAreaRatio * float64(f.Mat.Cols()*f.Mat.Rows())

	var cs []candidate
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) < minArea {
			continue
		}
		peri := gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, 0.02*peri, true)
		if approx.Size() == 4 {
			if c, ok := d.candidate(approx.ToPoints(), minArea); ok {
				cs = append(cs, c)
			}
		}
		approx.Close()
	}

	cs = dedupe(cs)
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].aspectErr != cs[j].aspectErr {
			return cs[i].aspectErr < cs[j].aspectErr
		}
		return cs[i].area > cs[j].area
	})
	if d.opts.MaxResults > 0 && len(cs) > d.opts.MaxResults {
		cs = cs[:d.opts.MaxResults]
	}

	out := make([]quad.Quad, len(cs))
	for i, c := range cs {
		out[i] = c.q
	}
	log.Debugf("Detected %d quadrilateral(s) in frame %d", len(out), f.Seq)
	return out
}

func (d *ContourDetector) candidate(pts []image.Point, minArea float64) (candidate, bool) {
	var corners [4]quad.Point
	for i, p := range pts {
		corners[i] = quad.Pt(float64(p.X), float64(p.Y))
	}
	q := quad.Order(corners)
	if !q.Convex() {
		return candidate{}, false
	}
	area := q.Area()
	if area < minArea {
		return candidate{}, false
	}
	aspectErr := aspectError(q.Aspect(), d.opts.AspectRatio)
	if d.opts.AspectTolerance > 0 && aspectErr > d.opts.AspectTolerance {
		return candidate{}, false
	}
	return candidate{q: q, area: area, aspectErr: aspectErr}, true
}

// aspectError is the relative difference between two aspect ratios, treating a
// rotated match (1/target) as equally good.
func aspectError(aspect, target float64) float64 {
	if aspect <= 0 || target <= 0 {
		return 0
	}
	e := math.Abs(aspect-target) / target
	inv := math.Abs(1/aspect-target) / target
	return math.Min(e, inv)
}

// dedupe drops candidates whose bounds nearly coincide with a larger one. The
// inner and outer edge of a dilated border both approximate to a quad.
func dedupe(cs []candidate) []candidate {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].area > cs[j].area
	})
	var out []candidate
	for _, c := range cs {
		dup := false
		for _, o := range out {
			if overlap(c.q.Bounds(), o.q.Bounds()) > 0.8 {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

// overlap is the intersection over union of two rectangles.
func overlap(a, b image.Rectangle) float64 {
	in := a.Intersect(b)
	if in.Empty() {
		return 0
	}
	ia := float64(in.Dx() * in.Dy())
	ua := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - ia
	return ia / ua
}

func (d *ContourDetector) Close() {
	d.gray.Close()
	d.blur.Close()
	d.edges.Close()
	d.kernel.Close()
}
