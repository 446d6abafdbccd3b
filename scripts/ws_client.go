// Package main runs a demo WebSocket client for run progress.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// a 12 job ring around one depot served by 3 vehicles
func demoRequest() []byte {
	jobs := []map[string]any{}
	for i := 0; i < 12; i++ {
		x, y := float64(10*(i%4)-15), float64(10*(i/4)-10)
		id := fmt.Sprintf("j%02d", i)
		jobs = append(jobs, map[string]any{"id": id, "location": map[string]any{"id": id, "x": x, "y": y}, "serviceTime": 2})
	}
	vehicles := []map[string]any{}
	for i := 1; i <= 3; i++ {
		vehicles = append(vehicles, map[string]any{"id": fmt.Sprintf("v%d", i), "start": map[string]any{"id": "depot", "x": 0, "y": 0}})
	}
	body, _ := json.Marshal(map[string]any{
		"problem": map[string]any{"name": "ws-demo", "costs": map[string]any{"kind": "euclidean"}, "vehicles": vehicles, "jobs": jobs},
		"solver":  map[string]any{"maxIterations": 3000},
		"async":   true,
	})
	return body
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Queue an async solve
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/solve", bytes.NewReader(demoRequest()))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var run struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	if run.ID == "" {
		log.Fatalf("no run id returned (status %d)", resp.StatusCode)
	}
	log.Printf("Run ID: %s", run.ID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + run.ID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
			if m.Type == "complete" {
				return
			}
		}
	}()

	select {
	case <-time.After(30 * time.Second):
		log.Print("timed out waiting for the run to finish")
	case <-done:
	}
}
