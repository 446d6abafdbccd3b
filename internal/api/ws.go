package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fleetspan/internal/model"
	"fleetspan/internal/store"
)

// Run progress over WebSocket: a snapshot of the run, then every run event
// until the run is done.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
)

// RunStreamHandler handles /v1/runs/{id}/ws
func (s *Server) RunStreamHandler(w http.ResponseWriter, r *http.Request, id string) {
	run, err := s.Store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, 404, "Run not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, 500, "Get run failed", err.Error(), r.URL.Path)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// Subscribe before re-reading the run so no final event slips between.
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	if fresh, err := s.Store.GetRun(r.Context(), id); err == nil {
		run = fresh
	}

	var mu sync.Mutex
	write := func(v any) error {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}
	snap, _ := json.Marshal(run)
	if err := write(wsMessage{Type: "snapshot", ID: id, Payload: snap}); err != nil {
		return
	}
	if run.Status.Done() {
		_ = write(wsMessage{Type: "complete", ID: id})
		return
	}

	// Read loop: handles pong and client close
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(wsPongWait)); return nil })
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "ping" {
				_ = write(wsMessage{Type: "pong"})
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
			mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			mu.Unlock()
			if err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			payload, _ := json.Marshal(evt)
			if err := write(wsMessage{Type: "next", ID: id, Payload: payload}); err != nil {
				s.Logger.Debug("ws write", zap.String("runId", id), zap.Error(err))
				return
			}
			if finalEvent(evt) {
				_ = write(wsMessage{Type: "complete", ID: id})
				return
			}
		}
	}
}

// finalEvent reports whether evt ends a run stream.
func finalEvent(evt model.RunEvent) bool { return evt.Status.Done() }
