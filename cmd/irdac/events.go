package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent stamps an event with the time it was observed. Inputs that know
// the capture time (IR readers) send TimedEvent themselves; everything else is
// stamped by the daemon loop on receipt.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// Boot is reduced once before any input so the hardware and the broker start
// from the power-on state.
type Boot struct{}

func (Boot) eventMarker() {}

// Tick drives the display timeout and debouncer expiry.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// IRCommandReceived is one decoded remote frame. It goes through the debouncer.
type IRCommandReceived struct {
	Command RemoteCommand
	Input   string // "evdev", "serial", "gpio", "ipc"
}

func (IRCommandReceived) eventMarker() {}

// ExternalVolumeSet is an absolute volume request from MQTT, HTTP or IPC.
// Exactly one of Step and DB is set.
type ExternalVolumeSet struct {
	Step   *int     `json:"step,omitempty"`
	DB     *float64 `json:"db,omitempty"`
	Origin string   `json:"origin,omitempty"`
}

func (ExternalVolumeSet) eventMarker() {}

// ExternalSourceSet selects a DAC input from outside the device.
type ExternalSourceSet struct {
	Source Source `json:"source"`
	Origin string `json:"origin,omitempty"`
}

func (ExternalSourceSet) eventMarker() {}

// DisplayMessage shows free text on the panel.
type DisplayMessage struct {
	Text   string `json:"text"`
	Origin string `json:"origin,omitempty"`
}

func (DisplayMessage) eventMarker() {}

// NowPlayingChanged carries streamer metadata for the display.
type NowPlayingChanged struct {
	NowPlaying NowPlaying `json:"now_playing"`
}

func (NowPlayingChanged) eventMarker() {}

// RequestStateSnapshot asks the daemon for a copy of its state.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// AttenuationApplied is reported by the DAC worker after a successful write.
type AttenuationApplied struct {
	DB float64
	At time.Time
}

func (AttenuationApplied) eventMarker() {}

// EffectFailed is reported when a command could not be carried out.
type EffectFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (EffectFailed) eventMarker() {}

// ============================================================================
// Wire format (IPC)
// ============================================================================

// EventEnvelope wraps events for line-delimited JSON transport.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// irCodePayload is a raw code as a remote would send it. Code accepts a JSON
// number or a string such as "0x4BA5".
type irCodePayload struct {
	Code     json.RawMessage `json:"code"`
	Protocol string          `json:"protocol,omitempty"`
	Repeat   bool            `json:"repeat,omitempty"`
}

type remoteCommandPayload struct {
	Command string `json:"command"`
}

// sourceSetPayload keeps Source optional so a missing name is an error rather
// than the zero Source.
type sourceSetPayload struct {
	Source *string `json:"source"`
	Origin string  `json:"origin,omitempty"`
}

// UnmarshalEvent decodes one IPC line. Raw IR codes are run through dec so
// they reach the reducer exactly like frames from a receiver. Sources are
// matched by name or by their display label.
func UnmarshalEvent(data []byte, dec *Decoder, labels map[Source]string) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "ir_code":
		var p irCodePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal ir_code: %w", err)
		}
		frame, err := p.frame()
		if err != nil {
			return nil, fmt.Errorf("unmarshal ir_code: %w", err)
		}
		if dec == nil {
			return nil, errors.New("ir_code: no decoder")
		}
		return IRCommandReceived{Command: dec.Decode(frame), Input: "ipc"}, nil

	case "remote_command":
		var p remoteCommandPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal remote_command: %w", err)
		}
		kind, err := parseCommandKind(p.Command)
		if err != nil {
			return nil, fmt.Errorf("unmarshal remote_command: %w", err)
		}
		return IRCommandReceived{Command: RemoteCommand{Kind: kind}, Input: "ipc"}, nil

	case "volume_set":
		var e ExternalVolumeSet
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal volume_set: %w", err)
		}
		if (e.Step == nil) == (e.DB == nil) {
			return nil, errors.New("volume_set: exactly one of step or db is required")
		}
		if e.Origin == "" {
			e.Origin = "ipc"
		}
		return e, nil

	case "source_set":
		var p sourceSetPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal source_set: %w", err)
		}
		if p.Source == nil {
			return nil, errors.New("source_set: source is required")
		}
		src, err := parseSourceOrLabel(*p.Source, labels)
		if err != nil {
			return nil, fmt.Errorf("source_set: %w", err)
		}
		e := ExternalSourceSet{Source: src, Origin: p.Origin}
		if e.Origin == "" {
			e.Origin = "ipc"
		}
		return e, nil

	case "display_text":
		var e DisplayMessage
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal display_text: %w", err)
		}
		if e.Origin == "" {
			e.Origin = "ipc"
		}
		return e, nil

	case "now_playing":
		var np NowPlaying
		if err := json.Unmarshal(env.Data, &np); err != nil {
			return nil, fmt.Errorf("unmarshal now_playing: %w", err)
		}
		return NowPlayingChanged{NowPlaying: np}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

func (p irCodePayload) frame() (IRFrame, error) {
	proto, err := parseIRProtocol(p.Protocol)
	if err != nil {
		return IRFrame{}, err
	}
	if p.Repeat {
		return IRFrame{Protocol: proto, Repeat: true}, nil
	}
	if len(p.Code) == 0 {
		return IRFrame{}, errors.New("code is required")
	}
	raw := strings.Trim(string(p.Code), `"`)
	code, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return IRFrame{}, fmt.Errorf("invalid code %s: %w", raw, err)
	}
	return IRFrame{Code: uint32(code), Protocol: proto}, nil
}
