package serve

import (
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"doccam/notify"
	"doccam/store"
	"doccam/video"
	"doccam/video/quad"
)

func newTestStore(t *testing.T, ids ...string) *store.Store {
	t.Helper()
	s, err := store.New(store.Options{BasePath: t.TempDir(), ThumbSize: image.Pt(30, 40)})
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2022, 4, 9, 12, 0, 0, 0, time.UTC)
	for i, id := range ids {
		s.ImageCaptured(video.Capture{
			ID:      id,
			Session: "s",
			Image:   gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 255), 80, 60, gocv.MatTypeCV8UC4),
			Quad:    quad.FromRect(image.Rect(0, 0, 80, 60)),
			Time:    base.Add(time.Duration(i) * time.Minute),
		})
	}
	return s
}

func TestRoutes(t *testing.T) {
	s := newTestStore(t, "first", "second")
	srv := httptest.NewServer(NewRouter(RouterOptions{Store: s}))
	defer srv.Close()

	tests := []struct {
		name        string
		method      string
		path        string
		wantStatus  int
		wantType    string
		wantContent string
	}{
		{"list", http.MethodGet, "/captures", http.StatusOK, "application/json", `"ItemsCount":2`},
		{"capture", http.MethodGet, "/capture/first", http.StatusOK, "image/jpeg", ""},
		{"thumb", http.MethodGet, "/thumb/second", http.StatusOK, "image/jpeg", ""},
		{"missing capture", http.MethodGet, "/capture/nope", http.StatusNotFound, "", "No record found"},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "", "go_goroutines"},
		{"no mjpeg", http.MethodGet, "/mjpeg?name=preview", http.StatusNotFound, "", ""},
		{"wrong method", http.MethodPut, "/capture/first", http.StatusMethodNotAllowed, "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, srv.URL+tc.path, nil)
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status: got %d, want %d (%s)", resp.StatusCode, tc.wantStatus, body)
			}
			if tc.wantType != "" && resp.Header.Get("Content-Type") != tc.wantType {
				t.Errorf("Content-Type: got %q, want %q", resp.Header.Get("Content-Type"), tc.wantType)
			}
			if !strings.Contains(string(body), tc.wantContent) {
				t.Errorf("body %q does not contain %q", body, tc.wantContent)
			}
		})
	}
}

func TestMetaServerNewestFirst(t *testing.T) {
	s := newTestStore(t, "first", "second", "third")
	resp := (&MetaServer{Store: s}).BuildResponse(2)
	if resp.ItemsCount != 2 {
		t.Fatalf("ItemsCount: got %d, want 2", resp.ItemsCount)
	}
	if resp.Items[0].ID != "third" || resp.Items[1].ID != "second" {
		t.Errorf("order: got %v, %v", resp.Items[0].ID, resp.Items[1].ID)
	}
	if resp.OldestTimestamp != resp.Items[1].Timestamp {
		t.Errorf("OldestTimestamp: got %d", resp.OldestTimestamp)
	}
	if resp.ItemsTotalSize == 0 || !resp.Items[0].HaveThumb {
		t.Errorf("sizes not reported: %+v", resp)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t, "gone")
	router := NewRouter(RouterOptions{Store: s})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/capture/gone", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rec.Code)
	}
	if s.GetRecordByID("gone") != nil {
		t.Error("record still present")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/capture/gone", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", rec.Code)
	}
}

func TestEventsWebsocket(t *testing.T) {
	m := NewMetaUpdater()
	defer m.Close()
	srv := httptest.NewServer(NewRouter(RouterOptions{Events: m}))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	msgs := make(chan []byte, 1)
	go func() {
		_, msg, err := ws.ReadMessage()
		if err == nil {
			msgs <- msg
		}
	}()

	n := notify.NewNotifier(m)
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	// The client registers asynchronously after the upgrade, so keep
	// notifying until one arrives.
	for {
		select {
		case msg := <-msgs:
			var got notify.Notification
			if err := json.Unmarshal(msg, &got); err != nil {
				t.Fatal(err)
			}
			if got.Kind != notify.KindStored || got.Identifier != "abc" {
				t.Errorf("got %+v", got)
			}
			return
		case <-tick.C:
			n.CaptureStored(&store.Record{ID: "abc"})
		case <-deadline:
			t.Fatal("no event received")
		}
	}
}
