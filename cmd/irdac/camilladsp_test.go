package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeCamilla answers SetVolume with result and GetVolume with volume.
type fakeCamilla struct {
	mu       sync.Mutex
	result   string
	volume   float64
	received []string
}

func (f *fakeCamilla) handler(t *testing.T) http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			f.mu.Lock()
			f.received = append(f.received, string(msg))
			result, volume := f.result, f.volume
			f.mu.Unlock()

			var reply any
			if string(msg) == `"GetVolume"` {
				reply = map[string]any{"GetVolume": map[string]any{"result": "Ok", "value": volume}}
			} else {
				reply = map[string]any{"SetVolume": map[string]any{"result": result}}
			}
			b, _ := json.Marshal(reply)
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	})
}

func newTestCamilla(t *testing.T, fake *fakeCamilla) *CamillaDSPClient {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, err := NewCamillaDSPClient(context.Background(), wsURL, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewCamillaDSPClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCamillaDSP_SetAttenuation(t *testing.T) {
	fake := &fakeCamilla{result: "Ok"}
	c := newTestCamilla(t, fake)

	if err := c.SetAttenuation(context.Background(), -39.5); err != nil {
		t.Fatalf("SetAttenuation: %v", err)
	}
	fake.mu.Lock()
	got := fake.received
	fake.mu.Unlock()
	if len(got) != 1 || got[0] != `{"SetVolume":-39.5}` {
		t.Errorf("expected one SetVolume command, got %v", got)
	}

	fake.mu.Lock()
	fake.result = "Error"
	fake.mu.Unlock()
	if err := c.SetAttenuation(context.Background(), -10); err == nil {
		t.Error("expected error when the DSP rejects the volume")
	}
}

func TestCamillaDSP_GetVolume(t *testing.T) {
	c := newTestCamilla(t, &fakeCamilla{result: "Ok", volume: -12.5})

	v, err := c.GetVolume(context.Background())
	if err != nil {
		t.Fatalf("GetVolume: %v", err)
	}
	if v != -12.5 {
		t.Errorf("expected -12.5, got %v", v)
	}
}

func TestCamillaDSP_ReconnectsAfterClose(t *testing.T) {
	c := newTestCamilla(t, &fakeCamilla{result: "Ok"})

	_ = c.Close()
	if err := c.SetAttenuation(context.Background(), -20); err != nil {
		t.Errorf("expected reconnect on next command, got %v", err)
	}
}
