package serve

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"doccam/store"
)

type FileServer struct {
	Store       *store.Store
	PathFunc    func(r *store.Record) string
	ContentType string
}

func NewCaptureServer(s *store.Store) *FileServer {
	return &FileServer{
		Store: s,
		PathFunc: func(r *store.Record) string {
			return r.CapturePath
		},
		ContentType: "image/jpeg",
	}
}

func NewThumbServer(s *store.Store) *FileServer {
	return &FileServer{
		Store: s,
		PathFunc: func(r *store.Record) string {
			return r.ThumbPath
		},
		ContentType: "image/jpeg",
	}
}

// recordID reads the capture ID from the route, falling back to the id form
// value.
func recordID(r *http.Request) (string, error) {
	if id := mux.Vars(r)["id"]; id != "" {
		return id, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.Form.Get("id"), nil
}

func (s *FileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec := s.Store.GetRecordByID(id)
	if rec == nil {
		http.Error(w, fmt.Sprintf("No record found for id %v", id), http.StatusNotFound)
		return
	}

	path := s.PathFunc(rec)
	if path == "" {
		http.Error(w, fmt.Sprintf("No file for id %v", id), http.StatusNotFound)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Add("Content-Type", s.ContentType)
	io.Copy(w, f)
}
