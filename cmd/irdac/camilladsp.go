package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CamillaDSPClient drives the Main fader of a CamillaDSP instance over its
// websocket API. Used when the DAC sits behind a DSP rather than an analogue
// attenuator.
type CamillaDSPClient struct {
	mu          sync.Mutex
	conn        *websocket.Conn
	url         string
	logger      *slog.Logger
	readTimeout time.Duration
}

// NewCamillaDSPClient validates the URL and connects, retrying briefly.
func NewCamillaDSPClient(ctx context.Context, wsURL string, readTimeout time.Duration, logger *slog.Logger) (*CamillaDSPClient, error) {
	if _, err := url.Parse(wsURL); err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	c := &CamillaDSPClient{
		url:         wsURL,
		logger:      logger,
		readTimeout: readTimeout,
	}
	if err := c.connectWithRetry(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CamillaDSPClient) connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	d := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := d.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

const camillaConnectAttempts = 10

func (c *CamillaDSPClient) connectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < camillaConnectAttempts; attempt++ {
		err := c.connect(ctx)
		if err == nil {
			c.logger.Info("connected to CamillaDSP", "url", c.url)
			return nil
		}
		lastErr = err
		c.logger.Warn("connection failed; retrying...", "error", err, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("failed to connect after %d attempts: %w", camillaConnectAttempts, lastErr)
}

func (c *CamillaDSPClient) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if connected {
		return nil
	}
	c.logger.Warn("connection lost; reconnecting...")
	return c.connectWithRetry(ctx)
}

// sendAndRead sends one command and waits for its reply. The reply deadline is
// the earlier of ctx's deadline and the configured read timeout.
func (c *CamillaDSPClient) sendAndRead(ctx context.Context, v any) ([]byte, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, errors.New("no websocket connection")
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.conn = nil
		return nil, err
	}

	deadline := time.Now().Add(c.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)
	defer func() {
		if c.conn != nil {
			_ = c.conn.SetReadDeadline(time.Time{})
		}
	}()

	_, message, err := c.conn.ReadMessage()
	if err != nil {
		c.conn = nil
		return nil, err
	}
	return message, nil
}

// camillaResult is the common reply shape: {"<Command>": {"result": "Ok", "value": ...}}.
type camillaResult[T any] struct {
	Result string `json:"result"`
	Value  T      `json:"value"`
}

// SetAttenuation implements Attenuator.
func (c *CamillaDSPClient) SetAttenuation(ctx context.Context, db float64) error {
	response, err := c.sendAndRead(ctx, map[string]any{"SetVolume": db})
	if err != nil {
		return fmt.Errorf("set volume: %w", err)
	}

	var resp struct {
		SetVolume camillaResult[json.RawMessage] `json:"SetVolume"`
	}
	if err := json.Unmarshal(response, &resp); err != nil {
		c.logger.Warn("failed to parse SetVolume response", "error", err)
		return nil
	}
	if resp.SetVolume.Result != "" && resp.SetVolume.Result != "Ok" {
		return fmt.Errorf("set volume: camilladsp replied %q", resp.SetVolume.Result)
	}
	c.logger.Debug("SetVolume", "db", db, "result", resp.SetVolume.Result)
	return nil
}

// GetVolume reads the Main fader, used to log the DSP level at startup.
func (c *CamillaDSPClient) GetVolume(ctx context.Context) (float64, error) {
	response, err := c.sendAndRead(ctx, "GetVolume")
	if err != nil {
		return 0, fmt.Errorf("get volume: %w", err)
	}
	var resp struct {
		GetVolume camillaResult[float64] `json:"GetVolume"`
	}
	if err := json.Unmarshal(response, &resp); err != nil {
		return 0, fmt.Errorf("parse GetVolume response: %w", err)
	}
	return resp.GetVolume.Value, nil
}

func (c *CamillaDSPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	return nil
}
