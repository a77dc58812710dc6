// Package server is the live preview: it broadcasts decoded frames to
// browser clients over websockets and exposes status endpoints for
// monitoring tools.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danielnrainer/rodhypix-go/internal/config"
	"github.com/danielnrainer/rodhypix-go/internal/render"
	"github.com/danielnrainer/rodhypix-go/internal/stats"
	"github.com/danielnrainer/rodhypix-go/rodhypix"
)

//go:embed web/*
var webFS embed.FS

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// Update is one decoded frame as sent to browser clients. PNG is the
// windowed 8-bit rendering; encoding/json turns it into base64.
type Update struct {
	Type        string  `json:"type"`
	Seq         uint64  `json:"seq"`
	Name        string  `json:"name"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Min         uint16  `json:"min"`
	Max         uint16  `json:"max"`
	Mean        float64 `json:"mean"`
	Saturated   int     `json:"saturated"`
	PixelSizeNM float64 `json:"pixel_size_nm"`
	PNG         []byte  `json:"png"`
}

// FrameUpdate renders a decode result into a broadcast message.
func FrameUpdate(seq uint64, name string, res *rodhypix.Result) (Update, error) {
	png, err := render.EncodePNG(res.Grid)
	if err != nil {
		return Update{}, err
	}
	st := res.Grid.Stats()
	return Update{
		Type:        "frame",
		Seq:         seq,
		Name:        name,
		Width:       res.Grid.Width,
		Height:      res.Grid.Height,
		Min:         st.Min,
		Max:         st.Max,
		Mean:        st.Mean,
		Saturated:   st.Saturated,
		PixelSizeNM: res.PixelSizeNM(),
		PNG:         png,
	}, nil
}

// client is one websocket connection. Writes are serialized through mu
// because the broadcaster, the keepalive pinger, and the read loop all
// send on the same connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(messageType int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

func (c *client) sendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *client) close() {
	_ = c.conn.Close()
}

// keepalive pings until done closes or a ping fails.
func (c *client) keepalive(done <-chan struct{}) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.send(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// hub is the connected-client registry.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	if h.clients == nil {
		h.clients = make(map[*client]struct{})
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// all snapshots the registry, so broadcasts write outside the lock and
// a stalled client cannot block new connections.
func (h *hub) all() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

type Server struct {
	upgrader websocket.Upgrader
	hub      hub
	frameMu  sync.Mutex
	latest   *Update
	cfg      config.ServeConfig
	statusFn func() stats.Snapshot
	log      *zap.SugaredLogger
}

// Run serves until ctx is cancelled, broadcasting every message from
// updates to all connected clients.
func Run(ctx context.Context, cfg config.ServeConfig, updates <-chan Update, statusFn func() stats.Snapshot, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	srv := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg:      cfg,
		statusFn: statusFn,
		log:      log,
	}

	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(sub)))
	mux.HandleFunc("/ws", srv.handleWS)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/config", srv.handleConfig)
	mux.HandleFunc("/status", srv.handleStatus)
	mux.HandleFunc("/frame.png", srv.handleFramePNG)

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go srv.broadcast(ctx, updates)

	return httpServer.ListenAndServe()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &client{conn: conn}
	s.hub.add(c)
	s.log.Debugf("ws client connected (%d active)", s.hub.count())

	_ = c.sendJSON(map[string]any{
		"type":     "config",
		"endpoint": s.cfg.Endpoint,
		"ui_rate":  s.cfg.UIRate,
	})
	if latest := s.latestUpdate(); latest != nil {
		_ = c.sendJSON(latest)
	}

	go s.serveClient(c)
}

// serveClient reads until the connection dies, answering frame
// requests with the latest update.
func (s *Server) serveClient(c *client) {
	done := make(chan struct{})
	go c.keepalive(done)
	defer close(done)
	defer s.dropClient(c)

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var req struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			continue
		}
		if req.Type == "frame_request" {
			if latest := s.latestUpdate(); latest != nil {
				_ = c.sendJSON(latest)
			}
		}
	}
}

func (s *Server) dropClient(c *client) {
	s.hub.drop(c)
	c.close()
}

func (s *Server) latestUpdate() *Update {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.latest
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"listen":   s.cfg.Listen,
		"endpoint": s.cfg.Endpoint,
		"ui_rate":  s.cfg.UIRate,
	})
}

type statusPayload struct {
	stats.Snapshot
	WSClients int `json:"ws_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := statusPayload{WSClients: s.hub.count()}
	if s.statusFn != nil {
		payload.Snapshot = s.statusFn()
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleFramePNG(w http.ResponseWriter, _ *http.Request) {
	latest := s.latestUpdate()
	if latest == nil {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(latest.PNG)
}

func (s *Server) broadcast(ctx context.Context, updates <-chan Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.publish(&update)
		}
	}
}

// publish stores the update as the latest frame and fans it out,
// dropping clients whose writes fail.
func (s *Server) publish(update *Update) {
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	s.frameMu.Lock()
	s.latest = update
	s.frameMu.Unlock()

	for _, c := range s.hub.all() {
		if err := c.send(websocket.TextMessage, payload); err != nil {
			s.log.Debugf("dropping stale ws client: %v", err)
			s.dropClient(c)
		}
	}
}
