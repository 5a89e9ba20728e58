// Package main runs a demo WebSocket client for the dispatch stream.
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
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	host := "localhost" + addr
	base := fmt.Sprintf("http://%s", host)

	// Connect the dispatch stream before planning so the event is seen.
	u := url.URL{Scheme: "ws", Host: host, Path: "/v1/dispatch/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	pl, _ := json.Marshal(map[string]any{"topic": "plans"})
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

	// Register a request and trigger a planning run.
	body := []byte(`{"requests":[{"patient":"Carmen Ruiz","pickupAddress":"Calle Mayor 1","deliveryAddress":"Hospital Clinic","category":"stretcher","appointment":"10:00"}]}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if _, err := http.DefaultClient.Do(req); err != nil {
		log.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	solveReq, _ := http.NewRequest(http.MethodPost, base+"/v1/solve", bytes.NewReader([]byte("{}")))
	solveReq.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(solveReq)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var plan struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		log.Fatal(err)
	}
	log.Printf("Plan ID: %s", plan.ID)

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
