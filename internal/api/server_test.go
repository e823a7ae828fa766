package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/breeze-rmm/snapshot-agent/internal/capture"
	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
	"github.com/breeze-rmm/snapshot-agent/internal/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pngCapturer struct{ err error }

func (c pngCapturer) Capture(ctx context.Context, sel desktop.Selector, out string) (capture.Outcome, error) {
	if c.err != nil {
		return capture.Outcome{}, c.err
	}
	return capture.Outcome{Path: out, Step: 1}, os.WriteFile(out, []byte("\x89PNG"), 0o600)
}

type staticMonitors []desktop.Monitor

func (m staticMonitors) ListMonitors(context.Context) []desktop.Monitor { return m }

type memSettings struct {
	sel desktop.Selector
	err error
}

func (m *memSettings) SelectedMonitor() desktop.Selector { return m.sel }

func (m *memSettings) SetSelectedMonitor(sel desktop.Selector) error {
	if m.err != nil {
		return m.err
	}
	m.sel = sel
	return nil
}

type fixture struct {
	srv      *Server
	manager  *queue.Manager
	settings *memSettings
	hub      *Hub
}

func newFixture(t *testing.T, c queue.Capturer) *fixture {
	t.Helper()
	hub := NewHub()
	m, err := queue.New(queue.Options{DataDir: t.TempDir(), Capturer: c, Notify: hub.Publish})
	if err != nil {
		t.Fatal(err)
	}
	settings := &memSettings{}
	srv := NewServer(Deps{
		Manager: m,
		Monitors: staticMonitors{
			{ID: "DP-2", DisplayName: "DP-2 (2560x1440) - Primary", Index: 0},
			{ID: "HDMI-1", DisplayName: "HDMI-1 (1920x1080)", Index: 1},
		},
		Settings: settings,
		Hub:      hub,
	})
	return &fixture{srv: srv, manager: m, settings: settings, hub: hub}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestTakeAndListScreenshots(t *testing.T) {
	f := newFixture(t, pngCapturer{})

	w := f.do(t, http.MethodPost, "/api/v1/screenshots?view=solutions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	shot := decode[queue.Shot](t, w)
	if !strings.HasPrefix(shot.Preview, "data:image/png;base64,") {
		t.Fatalf("preview = %q", shot.Preview)
	}
	if got := f.manager.Paths(queue.ViewSolutions); len(got) != 1 || got[0] != shot.Path {
		t.Fatalf("solutions queue = %v", got)
	}

	w = f.do(t, http.MethodGet, "/api/v1/screenshots?view=solutions", "")
	previews := decode[[]queue.Preview](t, w)
	if len(previews) != 1 || previews[0].Path != shot.Path {
		t.Fatalf("previews = %+v", previews)
	}

	w = f.do(t, http.MethodGet, "/api/v1/screenshots", "")
	if got := decode[[]queue.Preview](t, w); len(got) != 0 {
		t.Fatalf("current view is queue and should be empty, got %+v", got)
	}
}

func TestTakeScreenshotErrors(t *testing.T) {
	f := newFixture(t, pngCapturer{err: errors.New("screen capture failed: generic: no active displays")})

	w := f.do(t, http.MethodPost, "/api/v1/screenshots", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode[map[string]string](t, w); body["error"] != "screen capture failed: generic: no active displays" {
		t.Fatalf("error body = %v", body)
	}

	if w := f.do(t, http.MethodPost, "/api/v1/screenshots?view=debug", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown view status = %d", w.Code)
	}
}

func TestDeleteScreenshot(t *testing.T) {
	f := newFixture(t, pngCapturer{})
	shot := decode[queue.Shot](t, f.do(t, http.MethodPost, "/api/v1/screenshots", ""))

	body := `{"path":"` + shot.Path + `"}`
	if res := decode[queue.DeleteResult](t, f.do(t, http.MethodDelete, "/api/v1/screenshots", body)); !res.Success {
		t.Fatalf("first delete = %+v", res)
	}
	w := f.do(t, http.MethodDelete, "/api/v1/screenshots", body)
	if w.Code != http.StatusOK {
		t.Fatalf("failed delete should still be 200, got %d", w.Code)
	}
	if res := decode[queue.DeleteResult](t, w); res.Success || res.Error == "" {
		t.Fatalf("second delete = %+v", res)
	}

	if w := f.do(t, http.MethodDelete, "/api/v1/screenshots", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing path status = %d", w.Code)
	}
}

func TestDeleteOutsideScreenshotDirsIsRefused(t *testing.T) {
	f := newFixture(t, pngCapturer{})
	victim := filepath.Join(t.TempDir(), "report.png")
	if err := os.WriteFile(victim, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}

	b, _ := json.Marshal(map[string]string{"path": victim})
	res := decode[queue.DeleteResult](t, f.do(t, http.MethodDelete, "/api/v1/screenshots", string(b)))
	if res.Success || res.Error == "" {
		t.Fatalf("delete = %+v, want refusal", res)
	}
	if _, err := os.Stat(victim); err != nil {
		t.Fatalf("file outside the screenshot dirs was touched: %v", err)
	}
}

func TestCrossOriginRequestsRejected(t *testing.T) {
	tests := []struct {
		origin string
		want   int
	}{
		{"", http.StatusOK},
		{"http://127.0.0.1:5173", http.StatusOK},
		{"http://localhost:3000", http.StatusOK},
		{"http://[::1]:8080", http.StatusOK},
		{"file://", http.StatusOK},
		{"https://evil.example", http.StatusForbidden},
		{"http://localhost.evil.example", http.StatusForbidden},
		{"http://127.0.0.1.evil.example", http.StatusForbidden},
		{"null", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			f := newFixture(t, pngCapturer{})
			f.do(t, http.MethodPost, "/api/v1/screenshots", "")

			r := httptest.NewRequest(http.MethodPost, "/api/v1/screenshots/reset", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			f.srv.Handler().ServeHTTP(w, r)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			queued := len(f.manager.Paths(queue.ViewQueue))
			if tt.want == http.StatusForbidden && queued != 1 {
				t.Fatalf("rejected request still cleared the queue")
			}
		})
	}
}

func TestResetQueues(t *testing.T) {
	f := newFixture(t, pngCapturer{})
	f.do(t, http.MethodPost, "/api/v1/screenshots", "")
	f.do(t, http.MethodPost, "/api/v1/screenshots?view=solutions", "")

	w := f.do(t, http.MethodPost, "/api/v1/screenshots/reset", "")
	if w.Code != http.StatusOK || !decode[map[string]bool](t, w)["success"] {
		t.Fatalf("reset = %d %s", w.Code, w.Body)
	}
	if len(f.manager.Paths(queue.ViewQueue))+len(f.manager.Paths(queue.ViewSolutions)) != 0 {
		t.Fatal("queues not cleared")
	}
}

func TestListMonitorsKeepsIDTypes(t *testing.T) {
	f := newFixture(t, pngCapturer{})
	w := f.do(t, http.MethodGet, "/api/v1/monitors", "")
	if !strings.Contains(w.Body.String(), `"id":"DP-2"`) || !strings.Contains(w.Body.String(), `"name":"HDMI-1 (1920x1080)"`) {
		t.Fatalf("monitors body = %s", w.Body)
	}
}

func TestScreenshotConfig(t *testing.T) {
	f := newFixture(t, pngCapturer{})

	if got := f.do(t, http.MethodGet, "/api/v1/config/screenshot", "").Body.String(); got != `{"selectedMonitor":null}` {
		t.Fatalf("initial config = %s", got)
	}

	tests := []struct {
		body string
		want desktop.Selector
		echo string
	}{
		{`{"selectedMonitor":1}`, desktop.Index(1), `{"selectedMonitor":1}`},
		{`{"selectedMonitor":"DP-2"}`, desktop.Name("DP-2"), `{"selectedMonitor":"DP-2"}`},
		{`{"selectedMonitor":null}`, desktop.None(), `{"selectedMonitor":null}`},
	}
	for _, tt := range tests {
		w := f.do(t, http.MethodPut, "/api/v1/config/screenshot", tt.body)
		if w.Code != http.StatusOK || w.Body.String() != tt.echo {
			t.Fatalf("PUT %s = %d %s", tt.body, w.Code, w.Body)
		}
		if f.settings.sel != tt.want {
			t.Fatalf("stored selector = %v, want %v", f.settings.sel, tt.want)
		}
	}

	if w := f.do(t, http.MethodPut, "/api/v1/config/screenshot", `{"selectedMonitor":1.5}`); w.Code != http.StatusBadRequest {
		t.Fatalf("fractional selector status = %d", w.Code)
	}
	f.settings.err = errors.New("read-only file system")
	if w := f.do(t, http.MethodPut, "/api/v1/config/screenshot", `{"selectedMonitor":0}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("save failure status = %d", w.Code)
	}
}

func TestView(t *testing.T) {
	f := newFixture(t, pngCapturer{})
	if w := f.do(t, http.MethodPut, "/api/v1/view", `{"view":"solutions"}`); w.Code != http.StatusOK {
		t.Fatalf("PUT view = %d %s", w.Code, w.Body)
	}
	if got := decode[map[string]string](t, f.do(t, http.MethodGet, "/api/v1/view", ""))["view"]; got != "solutions" {
		t.Fatalf("view = %q", got)
	}
	if w := f.do(t, http.MethodPut, "/api/v1/view", `{"view":"debug"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown view status = %d", w.Code)
	}
}

func TestEventsStream(t *testing.T) {
	f := newFixture(t, pngCapturer{})
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(ts.URL+"/api/v1/screenshots", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e queue.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if e.Type != queue.EventTaken || e.View != queue.ViewQueue || e.Path == "" {
		t.Fatalf("event = %+v", e)
	}
}
