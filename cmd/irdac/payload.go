package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

var errEmptyPayload = errors.New("empty payload")

// parseVolumePayload accepts the forms seen on the volume set topic:
//
//	42               step
//	-30dB, -30.5 db  attenuation
//	{"step": 42}
//	{"db": -30}
func parseVolumePayload(b []byte, origin string) (ExternalVolumeSet, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return ExternalVolumeSet{}, errEmptyPayload
	}

	if strings.HasPrefix(s, "{") {
		var e ExternalVolumeSet
		dec := json.NewDecoder(bytes.NewReader([]byte(s)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&e); err != nil {
			return ExternalVolumeSet{}, fmt.Errorf("volume payload: %w", err)
		}
		if (e.Step == nil) == (e.DB == nil) {
			return ExternalVolumeSet{}, errors.New("volume payload: exactly one of step or db is required")
		}
		e.Origin = origin
		return e, nil
	}

	if num, ok := cutSuffixFold(s, "db"); ok {
		db, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return ExternalVolumeSet{}, fmt.Errorf("volume payload %q: %w", s, err)
		}
		return ExternalVolumeSet{DB: &db, Origin: origin}, nil
	}

	step, err := strconv.Atoi(s)
	if err != nil {
		return ExternalVolumeSet{}, fmt.Errorf("volume payload %q: not a step or dB value", s)
	}
	return ExternalVolumeSet{Step: &step, Origin: origin}, nil
}

func cutSuffixFold(s, suffix string) (string, bool) {
	if len(s) < len(suffix) || !strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s, false
	}
	return s[:len(s)-len(suffix)], true
}

// parseSourcePayload accepts a source name or its display label.
func parseSourcePayload(b []byte, labels map[Source]string, origin string) (ExternalSourceSet, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return ExternalSourceSet{}, errEmptyPayload
	}
	src, err := parseSourceOrLabel(s, labels)
	if err != nil {
		return ExternalSourceSet{}, fmt.Errorf("source payload: %w", err)
	}
	return ExternalSourceSet{Source: src, Origin: origin}, nil
}

// nowPlayingTracker merges now-playing fields that arrive separately (moOde
// publishes source and details on different topics, MPD only has details).
type nowPlayingTracker struct {
	mu sync.Mutex
	np NowPlaying
}

func (t *nowPlayingTracker) SetSource(s string) NowPlaying {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.np.Source = strings.TrimSpace(s)
	return t.np
}

func (t *nowPlayingTracker) SetDetails(d string) NowPlaying {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.np.Details = strings.TrimSpace(d)
	return t.np
}
