package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8642/ws", "flightmouse status websocket URL")
		raw   = flag.Bool("raw", false, "Print frames as received instead of one line per event")
		once  = flag.Bool("once", false, "Print the initial state and exit")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Guards writes: the ping goroutine and the close on shutdown.
	var writeMu sync.Mutex

	// The server pings every 20s; reply is automatic, we only extend the deadline.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			if *raw {
				fmt.Println(string(message))
			} else {
				fmt.Println(formatFrame(message))
			}
			if *once {
				return
			}
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
	case <-done:
		if !*once {
			log.Printf("connection closed")
		}
	}

	writeMu.Lock()
	err = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	writeMu.Unlock()
	if err != nil && !*once {
		log.Printf("error closing connection: %v", err)
	}
}

// frame mirrors the daemon's {type, ts, data} envelope.
type frame struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// formatFrame renders one status frame as a single human-readable line.
// Anything it cannot decode is returned verbatim.
func formatFrame(message []byte) string {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil || f.Type == "" {
		return string(message)
	}
	ts := f.Ts.Local().Format("15:04:05.000")

	switch f.Type {
	case "state_init":
		var d struct {
			Enabled bool             `json:"enabled"`
			Axes    map[string]int32 `json:"axes"`
		}
		if json.Unmarshal(f.Data, &d) != nil {
			break
		}
		return fmt.Sprintf("%s [STATE] enabled=%t x=%d y=%d throttle=%d rudder=%d",
			ts, d.Enabled, d.Axes["x"], d.Axes["y"], d.Axes["throttle"], d.Axes["rudder"])

	case "enabled_changed":
		var d struct {
			Enabled bool   `json:"enabled"`
			Origin  string `json:"origin"`
		}
		if json.Unmarshal(f.Data, &d) != nil {
			break
		}
		status := "DISABLED"
		if d.Enabled {
			status = "ENABLED"
		}
		return fmt.Sprintf("%s [TOGGLE] %s (%s)", ts, status, d.Origin)

	case "throttle_zone_changed":
		var d struct {
			Zone  string `json:"zone"`
			Value int32  `json:"value"`
		}
		if json.Unmarshal(f.Data, &d) != nil {
			break
		}
		return fmt.Sprintf("%s [THROTTLE] %s at %d", ts, d.Zone, d.Value)

	case "rudder_direction_changed":
		var d struct {
			Direction string `json:"direction"`
		}
		if json.Unmarshal(f.Data, &d) != nil {
			break
		}
		return fmt.Sprintf("%s [RUDDER] %s", ts, d.Direction)
	}

	return fmt.Sprintf("%s [%s] %s", ts, f.Type, string(f.Data))
}
