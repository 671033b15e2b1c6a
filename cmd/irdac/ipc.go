package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"
)

// IPC protocol: line-delimited JSON over a unix socket.
//
//	-> {"type": "volume_set", "data": {"step": 40}}
//	<- {"status": "ok"}
//
// Event types are those accepted by UnmarshalEvent, plus "get_state" which
// replies with the current snapshot.

// IPCResponse is written back for every request line.
type IPCResponse struct {
	Status string         `json:"status"` // "ok" or "error"
	Error  string         `json:"error,omitempty"`
	State  *StateSnapshot `json:"state,omitempty"`
}

// runIPCServer accepts connections until ctx is canceled.
func runIPCServer(ctx context.Context, socketPath string, dec *Decoder, labels map[Source]string, events chan<- Event, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer os.Remove(socketPath)
	defer listener.Close()

	if err := os.Chmod(socketPath, 0o660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}
	logger.Info("IPC listening", "socket", socketPath)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}
		go handleIPCConnection(ctx, conn, dec, labels, events, logger)
	}
}

func handleIPCConnection(ctx context.Context, conn net.Conn, dec *Decoder, labels map[Source]string, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()
	logger.Debug("IPC connection opened")

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		logger.Debug("IPC received", "line", string(line))

		resp := handleIPCLine(ctx, line, dec, labels, events, logger)
		if err := encoder.Encode(resp); err != nil {
			logger.Warn("IPC write failed", "error", err)
			return
		}
	}
	logger.Debug("IPC connection closed")
}

func handleIPCLine(ctx context.Context, line []byte, dec *Decoder, labels map[Source]string, events chan<- Event, logger *slog.Logger) IPCResponse {
	var env EventEnvelope
	if err := json.Unmarshal(line, &env); err == nil && env.Type == "get_state" {
		snap, err := requestSnapshot(ctx, events, snapshotTimeout)
		if err != nil {
			return IPCResponse{Status: "error", Error: err.Error()}
		}
		return IPCResponse{Status: "ok", State: &snap}
	}

	ev, err := UnmarshalEvent(line, dec, labels)
	if err != nil {
		return IPCResponse{Status: "error", Error: fmt.Sprintf("parse event: %v", err)}
	}
	if !trySend(events, ev, logger) {
		return IPCResponse{Status: "error", Error: "event queue full"}
	}
	return IPCResponse{Status: "ok"}
}

var errSnapshotTimeout = errors.New("state snapshot timed out")

// requestSnapshot asks the daemon loop for its state and waits for the reply.
func requestSnapshot(ctx context.Context, events chan<- Event, timeout time.Duration) (StateSnapshot, error) {
	reply := make(chan StateSnapshot, 1)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case events <- RequestStateSnapshot{Reply: reply}:
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case <-timer.C:
		return StateSnapshot{}, errSnapshotTimeout
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case <-timer.C:
		return StateSnapshot{}, errSnapshotTimeout
	}
}
