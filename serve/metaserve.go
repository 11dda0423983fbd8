package serve

import (
	"encoding/json"
	"net/http"
	"strconv"

	"doccam/store"
	"doccam/video/quad"
)

type MetaEntry struct {
	ID        string
	Session   string
	Timestamp int64

	Width     int
	Height    int
	HaveThumb bool

	Quad quad.Quad
}

type MetaResponse struct {
	Items []*MetaEntry

	ItemsTotalSize  int64
	ItemsCount      int
	OldestTimestamp int64
}

func toMetaEntry(r *store.Record) *MetaEntry {
	return &MetaEntry{
		ID:        r.ID,
		Session:   r.Session,
		Timestamp: r.Time.Unix(),
		Width:     r.Width,
		Height:    r.Height,
		HaveThumb: r.HaveThumb(),
		Quad:      r.Quad,
	}
}

type MetaServer struct {
	Store *store.Store
}

// BuildResponse lists captures newest first, at most limit of them when limit
// is positive.
func (s *MetaServer) BuildResponse(limit int) *MetaResponse {
	records := s.Store.Records()
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	resp := &MetaResponse{Items: []*MetaEntry{}}
	var sz int64
	for _, r := range records {
		resp.Items = append(resp.Items, toMetaEntry(r))
		sz += r.Size
		resp.OldestTimestamp = r.Time.Unix()
	}
	resp.ItemsTotalSize = sz
	resp.ItemsCount = len(records)
	return resp
}

func (s *MetaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var limit int
	if l := r.Form.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	js, err := json.Marshal(s.BuildResponse(limit))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
