package source

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doccam",
		Subsystem: "source",
		Name:      "frames_captured_total",
		Help:      "Frames read from the capture device.",
	})
	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doccam",
		Subsystem: "source",
		Name:      "frames_dropped_total",
		Help:      "Frames discarded because the consumer was busy.",
	})
)
