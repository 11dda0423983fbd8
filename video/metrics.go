package video

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doccam",
		Name:      "frames_processed_total",
		Help:      "Frames run through detection and rendering.",
	})
	detectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doccam",
		Name:      "detections_total",
		Help:      "Quadrilaterals detected across all frames.",
	})
	capturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doccam",
		Name:      "captures_total",
		Help:      "Capture attempts by result (ok, empty, error).",
	}, []string{"result"})
	schedulerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "doccam",
		Name:      "capture_state",
		Help:      "Capture scheduler state: 0 idle, 1 armed, 2 capturing.",
	})
)
