package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http/httptest"
	"testing"

	"github.com/danielnrainer/rodhypix-go/internal/config"
	"github.com/danielnrainer/rodhypix-go/internal/stats"
	"github.com/danielnrainer/rodhypix-go/rodhypix"
	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
)

func TestHandleStatus(t *testing.T) {
	srv := &Server{
		statusFn: func() stats.Snapshot {
			return stats.Snapshot{Received: 5, Decoded: 4, Failures: 1}
		},
	}

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))

	if rec.Code != 200 {
		t.Fatalf("status code = %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["received"].(float64) != 5 {
		t.Fatalf("received = %v", payload["received"])
	}
	if payload["failures"].(float64) != 1 {
		t.Fatalf("failures = %v", payload["failures"])
	}
	if payload["ws_clients"].(float64) != 0 {
		t.Fatalf("ws_clients = %v", payload["ws_clients"])
	}
}

func TestHandleHealth(t *testing.T) {
	srv := &Server{}

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 200 {
		t.Fatalf("status code = %d", rec.Code)
	}
	if body := rec.Body.String(); body != "ok" {
		t.Fatalf("body = %q", body)
	}
}

func TestHandleConfig(t *testing.T) {
	srv := &Server{
		cfg: config.ServeConfig{
			Listen:   ":9999",
			Endpoint: "tcp://box:5555",
			UIRate:   4,
		},
	}

	rec := httptest.NewRecorder()
	srv.handleConfig(rec, httptest.NewRequest("GET", "/config", nil))

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["listen"] != ":9999" {
		t.Fatalf("listen = %v", payload["listen"])
	}
	if payload["endpoint"] != "tcp://box:5555" {
		t.Fatalf("endpoint = %v", payload["endpoint"])
	}
}

func TestHandleFramePNG(t *testing.T) {
	srv := &Server{}

	rec := httptest.NewRecorder()
	srv.handleFramePNG(rec, httptest.NewRequest("GET", "/frame.png", nil))
	if rec.Code != 404 {
		t.Fatalf("empty server status = %d, want 404", rec.Code)
	}

	update := mustFrameUpdate(t)
	srv.latest = &update
	rec = httptest.NewRecorder()
	srv.handleFramePNG(rec, httptest.NewRequest("GET", "/frame.png", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Fatalf("body is not a PNG: %v", err)
	}
}

func mustFrameUpdate(t *testing.T) Update {
	t.Helper()
	g := frame.New(8, 4)
	for i := range g.Pix {
		g.Pix[i] = uint16(100 * i)
	}
	res := &rodhypix.Result{
		Header: &rodhypix.Header{
			Width: 8, Height: 4,
			PixelSizeX: 0.1, PixelSizeY: 0.1,
			Present: rodhypix.FieldPixelSize,
		},
		Grid: g,
	}
	update, err := FrameUpdate(3, "frame_0003", res)
	if err != nil {
		t.Fatalf("frame update: %v", err)
	}
	return update
}

func TestFrameUpdateFields(t *testing.T) {
	update := mustFrameUpdate(t)
	if update.Type != "frame" || update.Seq != 3 {
		t.Fatalf("update = %+v", update)
	}
	if update.Width != 8 || update.Height != 4 {
		t.Fatalf("dims = %dx%d", update.Width, update.Height)
	}
	if update.Min != 0 || update.Max != 3100 {
		t.Fatalf("min/max = %d/%d", update.Min, update.Max)
	}
	if update.PixelSizeNM != 100000 {
		t.Fatalf("pixel size = %v", update.PixelSizeNM)
	}
	if len(update.PNG) == 0 {
		t.Fatal("missing png payload")
	}
}
