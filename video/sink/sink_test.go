package sink

import (
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestContextSwitch(t *testing.T) {
	binds := 0
	a := NewContext("a", func() { binds++ })
	b := NewContext("b", nil)

	a.MakeCurrent()
	a.MakeCurrent()
	if binds != 1 {
		t.Errorf("binds after repeated MakeCurrent: got %d, want 1", binds)
	}
	if !a.IsCurrent() || b.IsCurrent() {
		t.Error("expected a to be the current context")
	}

	b.MakeCurrent()
	if Current() != b {
		t.Error("expected b to be the current context")
	}
	a.MakeCurrent()
	if binds != 2 {
		t.Errorf("binds after switching back: got %d, want 2", binds)
	}
}

func TestMJPEGDuplicateStream(t *testing.T) {
	s := NewMJPEGServer()
	if _, err := s.NewStream("preview"); err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	if _, err := s.NewStream("preview"); err == nil {
		t.Error("expected an error for a duplicate stream name")
	}
}

func TestMJPEGSurfaceGeometry(t *testing.T) {
	s := NewMJPEGServer()
	region := image.Rect(10, 0, 90, 60)
	surf, err := s.NewSurface("preview", image.Pt(100, 60), region)
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	defer surf.Close()

	if surf.Size() != image.Pt(100, 60) || surf.Region() != region {
		t.Errorf("unexpected geometry: size %v region %v", surf.Size(), surf.Region())
	}
	if surf.Context() == nil {
		t.Error("surface has no rendering context")
	}
}

func TestMJPEGServeErrors(t *testing.T) {
	s := NewMJPEGServer()
	tests := []struct {
		name string
		url  string
		code int
	}{
		{name: "missing name", url: "/mjpeg", code: http.StatusBadRequest},
		{name: "unknown stream", url: "/mjpeg?name=nope", code: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest("GET", tc.url, nil))
			if rec.Code != tc.code {
				t.Errorf("status: got %d, want %d", rec.Code, tc.code)
			}
		})
	}
}
