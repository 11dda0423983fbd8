// Package store keeps captured images on disk.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"doccam/video"
	"doccam/video/process"
	"doccam/video/quad"
)

const (
	ExtCapture = "_capture.jpg"
	ExtThumb   = "_thumb.jpg"
	ExtMeta    = "_meta.json"

	// FileTimeLayout defines the format of filenames, always in UTC.
	// See https://golang.org/src/time/format.go.
	FileTimeLayout = "20060102-150405.000"
)

var ErrNotFound = errors.New("no such capture")

type Record struct {
	ID      string
	Session string
	Time    time.Time
	Quad    quad.Quad
	Width   int
	Height  int

	CapturePath string `json:"-"`
	ThumbPath   string `json:"-"`
	MetaPath    string `json:"-"`
	Size        int64  `json:"-"`
}

func (r *Record) HaveThumb() bool {
	return r.ThumbPath != ""
}

// Listener is notified as captures are added and removed. Calls must not
// block.
type Listener interface {
	CaptureStored(r *Record)
	CaptureDeleted(r *Record)
}

type Options struct {
	BasePath  string
	ThumbSize image.Point
}

// Store writes each capture as a JPEG with a thumbnail and a metadata file, all
// sharing a basename of the capture time and ID. It implements video.Consumer.
type Store struct {
	opts Options

	// Listeners must be set before the store is shared.
	Listeners []Listener

	records map[string]*Record
	l       sync.Mutex
}

func New(opts Options) (*Store, error) {
	if err := os.MkdirAll(opts.BasePath, 0755); err != nil {
		return nil, err
	}
	s := &Store{
		opts:    opts,
		records: make(map[string]*Record),
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) basename(t time.Time, id string) string {
	return filepath.Join(s.opts.BasePath, t.UTC().Format(FileTimeLayout)+"_"+id)
}

// ImageCaptured saves the capture and releases its image.
func (s *Store) ImageCaptured(c video.Capture) {
	defer c.Image.Close()
	r, err := s.Save(c)
	if err != nil {
		log.WithField("id", c.ID).Errorf("Failed to store capture: %v", err)
		return
	}
	log.WithField("id", r.ID).Infof("Stored capture %v", r.CapturePath)
}

// Save writes c to disk. The caller keeps ownership of c.Image.
func (s *Store) Save(c video.Capture) (*Record, error) {
	if c.Image.Empty() {
		return nil, process.ErrEmptyImage
	}
	base := s.basename(c.Time, c.ID)
	r := &Record{
		ID:          c.ID,
		Session:     c.Session,
		Time:        c.Time,
		Quad:        c.Quad,
		Width:       c.Image.Cols(),
		Height:      c.Image.Rows(),
		CapturePath: base + ExtCapture,
		MetaPath:    base + ExtMeta,
	}

	jpeg, err := process.EncodeJPEG(c.Image)
	if err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}
	if err := os.WriteFile(r.CapturePath, jpeg, 0644); err != nil {
		return nil, err
	}
	r.Size = int64(len(jpeg))

	if s.opts.ThumbSize.X > 0 && s.opts.ThumbSize.Y > 0 {
		if err := process.WriteThumb(base+ExtThumb, c.Image, s.opts.ThumbSize); err != nil {
			log.WithField("id", c.ID).Warnf("Failed to write thumbnail: %v", err)
		} else {
			r.ThumbPath = base + ExtThumb
		}
	}

	meta, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(r.MetaPath, meta, 0644); err != nil {
		return nil, err
	}

	s.l.Lock()
	s.records[r.ID] = r
	listeners := s.Listeners
	s.l.Unlock()

	for _, l := range listeners {
		l.CaptureStored(r)
	}
	return r, nil
}

// Refresh rebuilds the record index from the files on disk.
func (s *Store) Refresh() error {
	m := make(map[string]*Record)

	files, err := os.ReadDir(s.opts.BasePath)
	if err != nil {
		return err
	}

	for _, file := range files {
		b := file.Name()
		parts := strings.SplitN(b, "_", 3)
		if len(parts) != 3 || parts[1] == "" {
			continue
		}
		t, err := time.Parse(FileTimeLayout, parts[0])
		if err != nil {
			continue
		}
		id, ext := parts[1], "_"+parts[2]

		r := m[id]
		if r == nil {
			r = &Record{ID: id, Time: t}
		}

		p := filepath.Join(s.opts.BasePath, b)
		switch ext {
		case ExtCapture:
			r.CapturePath = p
			if info, err := file.Info(); err == nil {
				r.Size = info.Size()
			}
		case ExtThumb:
			r.ThumbPath = p
		case ExtMeta:
			r.MetaPath = p
		default:
			continue
		}
		m[id] = r
	}

	for id, r := range m {
		if r.CapturePath == "" {
			delete(m, id)
			continue
		}
		if r.MetaPath != "" {
			if err := readMeta(r); err != nil {
				log.WithField("id", id).Warnf("Ignoring metadata: %v", err)
			}
		}
	}

	s.l.Lock()
	defer s.l.Unlock()
	s.records = m
	return nil
}

func readMeta(r *Record) error {
	b, err := os.ReadFile(r.MetaPath)
	if err != nil {
		return err
	}
	var meta Record
	if err := json.Unmarshal(b, &meta); err != nil {
		return err
	}
	if !meta.Time.IsZero() {
		r.Time = meta.Time
	}
	r.Session = meta.Session
	r.Quad = meta.Quad
	r.Width = meta.Width
	r.Height = meta.Height
	return nil
}

// Records returns all captures, newest first.
func (s *Store) Records() []*Record {
	s.l.Lock()
	defer s.l.Unlock()
	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].Time.After(out[j].Time)
	})
	return out
}

func (s *Store) GetRecordByID(id string) *Record {
	s.l.Lock()
	defer s.l.Unlock()
	return s.records[id]
}

// Delete removes a capture's files, then drops it from the index. If a file
// can't be removed the capture stays listed.
func (s *Store) Delete(id string) error {
	r := s.GetRecordByID(id)
	if r == nil {
		return ErrNotFound
	}
	for _, p := range []string{r.CapturePath, r.ThumbPath, r.MetaPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	s.l.Lock()
	if s.records[id] != r {
		// Deleted concurrently.
		s.l.Unlock()
		return ErrNotFound
	}
	delete(s.records, id)
	listeners := s.Listeners
	s.l.Unlock()

	for _, l := range listeners {
		l.CaptureDeleted(r)
	}
	return nil
}
