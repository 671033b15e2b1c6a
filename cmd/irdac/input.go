package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

func (ev inputEvent) time() time.Time {
	return time.Unix(ev.Sec, ev.Usec*int64(time.Microsecond))
}

// readInputEvents reads input events from one device until it fails.
// It runs in a dedicated goroutine and blocks on read.
func readInputEvents(f *os.File, events chan<- inputEvent, readErr chan<- error) {
	buf := make([]byte, binary.Size(inputEvent{}))
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			readErr <- fmt.Errorf("read from %s: %w", f.Name(), err)
			return
		}
		reader.Reset(buf)
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			continue
		}
		events <- ev
	}
}

// translateInputEvent maps an rc-core event to a remote command.
//
// The kernel reports every received frame as EV_MSC/MSC_SCAN with the raw
// scancode, and additionally as EV_KEY when its own keymap knows the code.
// Scancodes go through our keymap; kernel volume keys are accepted directly.
// Both arrive for the same frame, and the debouncer absorbs the duplicate.
func translateInputEvent(ev inputEvent, dec *Decoder) (RemoteCommand, bool) {
	switch ev.Type {
	case EV_MSC:
		if ev.Code != MSC_SCAN {
			return RemoteCommand{}, false
		}
		return dec.Decode(IRFrame{Code: uint32(ev.Value)}), true

	case EV_KEY:
		var kind CommandKind
		switch ev.Code {
		case KEY_VOLUMEUP:
			kind = VolumeUp
		case KEY_VOLUMEDOWN:
			kind = VolumeDown
		default:
			return RemoteCommand{}, false
		}
		switch ev.Value {
		case evValuePress:
			return RemoteCommand{Kind: kind, Family: FamilyGeneric}, true
		case evValueRepeat:
			return RemoteCommand{Kind: Repeat, Family: FamilyGeneric}, true
		}
	}
	return RemoteCommand{}, false
}

// emitRemote forwards a decoded command to the daemon, stamped with its
// capture time. Unmapped codes are dropped here.
func emitRemote(events chan<- Event, cmd RemoteCommand, input string, at time.Time, logger *slog.Logger) {
	if cmd.Kind == NoMatch {
		logger.Debug("unmapped IR code", "input", input, "code", fmt.Sprintf("0x%08X", cmd.Code))
		return
	}
	trySend(events, TimedEvent{Event: IRCommandReceived{Command: cmd, Input: input}, At: at}, logger)
}

// runEvdevInput reads all configured evdev nodes and forwards remote commands.
// It returns when ctx is canceled or a device fails.
func runEvdevInput(ctx context.Context, devices []string, dec *Decoder, events chan<- Event, logger *slog.Logger) error {
	if len(devices) == 0 {
		return nil
	}

	files := make([]*os.File, 0, len(devices))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			return fmt.Errorf("open input device %s: %w", dev, err)
		}
		files = append(files, f)
	}
	logger.Info("reading IR input devices", "devices", devices)

	raw := make(chan inputEvent, eventQueueSize)
	readErr := make(chan error, 1)
	go readInputEventsMulti(ctx, files, raw, readErr)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("input reader stopped: %w", err)
		case ev := <-raw:
			cmd, ok := translateInputEvent(ev, dec)
			if !ok {
				continue
			}
			emitRemote(events, cmd, "evdev", ev.time(), logger)
		}
	}
}
