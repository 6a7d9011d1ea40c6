// Command nexdigi-eventbridge is throwaway glue, not a control surface: it
// upgrades a single HTTP connection to a WebSocket and relays every event
// published on an internal/events.Bus to it as JSON, one WebSocket text
// message per event.
// It exists only to demonstrate that the event bus is sufficient to build
// a real-time feed on top of; a production UI would replace this with its
// own transport.
package main

import (
	"encoding/json"
	"net/http"

	charmlog "github.com/charmbracelet/log"

	"github.com/btcsuite/websocket"

	"github.com/na4wx/nexdigi/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	addr := ":9096"
	bus := events.New()

	http.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		handleSubscriber(bus, w, r)
	})

	charmlog.Info("nexdigi-eventbridge listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		charmlog.Fatal("eventbridge exited", "err", err)
	}
}

func handleSubscriber(bus *events.Bus, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		charmlog.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch, unsubscribe := bus.Subscribe(32)
	defer unsubscribe()

	// Seed a synthetic event so a connecting client sees activity without
	// wiring this standalone binary to a running daemon's bus.
	bus.Publish(events.LinkUp, map[string]string{"peer": "N0CALL-10"})

	for ev := range ch {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			charmlog.Debug("eventbridge subscriber disconnected", "err", err)
			return
		}
	}
}
