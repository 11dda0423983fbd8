package serve

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"doccam/store"
)

type RouterOptions struct {
	Store *store.Store
	// MJPEG serves the preview streams, selected by the name form value.
	MJPEG  http.Handler
	Events *MetaUpdater
}

// NewRouter wires the HTTP frontend. Handlers left nil are not routed.
func NewRouter(opts RouterOptions) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	if opts.MJPEG != nil {
		r.Handle("/mjpeg", opts.MJPEG)
	}
	if opts.Events != nil {
		r.Handle("/events", opts.Events)
	}
	if opts.Store != nil {
		r.Handle("/captures", &MetaServer{Store: opts.Store}).Methods(http.MethodGet)
		r.Handle("/capture/{id}", NewCaptureServer(opts.Store)).Methods(http.MethodGet)
		r.Handle("/capture/{id}", &DeleteServer{Store: opts.Store}).Methods(http.MethodDelete, http.MethodPost)
		r.Handle("/thumb/{id}", NewThumbServer(opts.Store)).Methods(http.MethodGet)
	}
	return r
}
