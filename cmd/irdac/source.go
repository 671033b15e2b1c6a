package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Source is the DAC input currently routed to the output stage.
type Source int

const (
	SourceOptical Source = iota
	SourceCoax
	SourceI2S
)

var allSources = []Source{SourceOptical, SourceCoax, SourceI2S}

// String returns the canonical name, also used as the published MQTT payload.
func (s Source) String() string {
	switch s {
	case SourceOptical:
		return "Optical"
	case SourceCoax:
		return "Coax"
	case SourceI2S:
		return "I2S"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Next cycles Optical -> Coax -> I2S -> Optical.
func (s Source) Next() Source {
	return allSources[(int(s)+1)%len(allSources)]
}

// ParseSource accepts canonical names plus common aliases, case-insensitively.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "optical", "toslink", "opt":
		return SourceOptical, nil
	case "coax", "coaxial", "spdif":
		return SourceCoax, nil
	case "i2s", "moode":
		return SourceI2S, nil
	}
	return 0, fmt.Errorf("%w: unknown source %q", ErrOutOfRange, name)
}

// parseSourceOrLabel additionally accepts the configured display labels
// ("TV", "COAX", "MOODE" by default), which is what a dashboard usually echoes.
func parseSourceOrLabel(name string, labels map[Source]string) (Source, error) {
	if src, err := ParseSource(name); err == nil {
		return src, nil
	}
	trimmed := strings.TrimSpace(name)
	for _, src := range allSources {
		if l, ok := labels[src]; ok && l != "" && strings.EqualFold(l, trimmed) {
			return src, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown source %q", ErrOutOfRange, name)
}

func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Source) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	src, err := ParseSource(name)
	if err != nil {
		return err
	}
	*s = src
	return nil
}
