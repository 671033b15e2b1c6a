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

// state-listen connects to the irdac state websocket and prints every frame,
// one line per event.

type frame struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8080/ws", "irdac state websocket URL")
		raw   = flag.Bool("raw", false, "Print frames as received")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	log.Printf("connected (press Ctrl+C to exit)")

	var writeMu sync.Mutex
	conn.SetPingHandler(func(data string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if *raw {
				fmt.Println(string(msg))
				continue
			}
			printFrame(msg)
		}
	}()

	select {
	case <-sigc:
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

func printFrame(msg []byte) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		fmt.Printf("[TEXT] %s\n", msg)
		return
	}
	ts := ""
	if f.Ts != nil {
		ts = f.Ts.Local().Format("15:04:05.000") + " "
	}

	switch f.Type {
	case "volume_changed":
		var v struct {
			Step int     `json:"step"`
			DB   float64 `json:"db"`
		}
		if json.Unmarshal(f.Data, &v) == nil {
			fmt.Printf("%s[VOLUME] step %d (%.1f dB)\n", ts, v.Step, v.DB)
			return
		}
	case "source_changed":
		var v struct {
			Source string `json:"source"`
		}
		if json.Unmarshal(f.Data, &v) == nil {
			fmt.Printf("%s[SOURCE] %s\n", ts, v.Source)
			return
		}
	case "display":
		var v struct {
			Visible bool     `json:"visible"`
			Lines   []string `json:"lines"`
		}
		if json.Unmarshal(f.Data, &v) == nil {
			if !v.Visible {
				fmt.Printf("%s[DISPLAY] off\n", ts)
				return
			}
			fmt.Printf("%s[DISPLAY] %q\n", ts, v.Lines)
			return
		}
	}

	var pretty any
	if json.Unmarshal(f.Data, &pretty) == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("%s[%s]\n%s\n", ts, f.Type, out)
		return
	}
	fmt.Printf("%s[%s]\n", ts, f.Type)
}
