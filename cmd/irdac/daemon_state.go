package main

import "time"

// DaemonState is everything the daemon goroutine owns. Nothing outside the
// daemon loop may touch it; other goroutines ask for a StateSnapshot.
type DaemonState struct {
	Volume *VolumeModel
	Panel  *FrontPanel
	Remote *Debouncer

	// DAC is what the attenuator last confirmed.
	DAC DACState

	// Rejected counts external requests refused with ErrOutOfRange.
	Rejected int
}

// DACState is observed state, updated from effect reports.
type DACState struct {
	AppliedDB float64
	Known     bool
	At        time.Time
	Failures  int
	LastError string
}

// NewDaemonState builds the power-on state from config.
func NewDaemonState(cfg *Config, now time.Time) (*DaemonState, error) {
	src, err := ParseSource(cfg.Source.Default)
	if err != nil {
		return nil, err
	}
	return &DaemonState{
		Volume: NewVolumeModel(&cfg.Volume, cfg.Volume.InitialStep),
		Panel:  NewFrontPanel(&cfg.Display, cfg.SourceLabels(), src, now),
		Remote: NewDebouncer(cfg.RemoteTiming()),
	}, nil
}

// StateSnapshot is an immutable copy handed to HTTP and websocket clients.
type StateSnapshot struct {
	Step  int     `json:"step"`
	Steps int     `json:"steps"`
	DB    float64 `json:"db"`

	Source Source `json:"source"`
	Label  string `json:"label"`

	Display    Frame      `json:"display"`
	NowPlaying NowPlaying `json:"now_playing"`

	DACAppliedDB float64   `json:"dac_applied_db"`
	DACKnown     bool      `json:"dac_known"`
	DACAt        time.Time `json:"dac_at"`
	DACFailures  int       `json:"dac_failures"`

	// RemoteGesture is the remote command currently being held, if any.
	RemoteGesture string `json:"remote_gesture,omitempty"`

	Rejected int `json:"rejected"`
}

func (s *DaemonState) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		Step:         s.Volume.Step(),
		Steps:        s.Volume.Steps(),
		DB:           s.Volume.CurrentDB(),
		Source:       s.Panel.Source(),
		Label:        s.Panel.Label(),
		Display:      s.Panel.Frame(s.Volume.Step(), s.Volume.CurrentDB()),
		NowPlaying:   s.Panel.NowPlaying(),
		DACAppliedDB: s.DAC.AppliedDB,
		DACKnown:     s.DAC.Known,
		DACAt:        s.DAC.At,
		DACFailures:  s.DAC.Failures,
		Rejected:     s.Rejected,
	}
	if kind, ok := s.Remote.Armed(); ok {
		snap.RemoteGesture = kind.String()
	}
	return snap
}
