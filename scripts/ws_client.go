// Package main runs a demo WebSocket client for planning events.
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

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	planDate := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	post := func(path string, body string) *http.Response {
		req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Role", "admin")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatal(err)
		}
		return resp
	}

	// Seed a vehicle and a plan so the optimizer has work to do
	resp := post("/v1/vehicles", `{"vehicles":[{"id":"veh-demo","name":"Demo Van","capacityKg":800}]}`)
	_ = resp.Body.Close()
	resp = post("/v1/plans", fmt.Sprintf(
		`{"plans":[{"address":{"city":"Sao Paulo","province":"SP"},"requestedDate":"%s","priority":"high","weightKg":120}]}`, planDate))
	_ = resp.Body.Close()

	// Connect WS before triggering the run
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/ws"}
	hdr := http.Header{}
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	pl, _ := json.Marshal(map[string]any{"topic": "planning"})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

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
		}
	}()

	// Trigger an optimize run so events flow
	time.Sleep(500 * time.Millisecond)
	resp = post("/v1/routes/optimize", fmt.Sprintf(`{"planDate":"%s"}`, planDate))
	_ = resp.Body.Close()

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
