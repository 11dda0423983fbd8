package process

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "doccam",
		Subsystem: "process",
		Name:      "detect_seconds",
		Help:      "Time spent detecting quadrilaterals in one frame.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
	})
	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "doccam",
		Subsystem: "process",
		Name:      "render_seconds",
		Help:      "Time spent compositing and fitting one preview frame.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
	})
	renderSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doccam",
		Subsystem: "process",
		Name:      "render_skipped_total",
		Help:      "Frames not rendered because the frame or target had zero area.",
	})
)
