package main

import (
	"time"

	"golang.org/x/time/rate"
)

// DebounceConfig holds the remote timing policy.
type DebounceConfig struct {
	// Window is the longest gap between frames of one gesture.
	Window time.Duration
	// HoldDelay suppresses repeats right after a press. Sony remotes send every
	// press at least three times and rc-core delivers both a scancode and a key
	// event per frame; those echoes all land inside this delay.
	HoldDelay time.Duration
	// RepeatInterval bounds the auto-repeat rate once a key is held.
	RepeatInterval time.Duration
}

type debounceState int

const (
	debounceIdle debounceState = iota
	debounceArmed
)

func (s debounceState) String() string {
	if s == debounceArmed {
		return "armed"
	}
	return "idle"
}

// Debouncer collapses the noisy frame stream of a remote into discrete
// commands. It is driven entirely by caller timestamps, so it never blocks and
// tests can feed it a fake clock.
//
//	Idle --cmd--> Armed(kind)            emit
//	Armed(kind) --same kind, < HoldDelay--> Armed   drop
//	Armed(kind) --same kind, >= HoldDelay--> Armed  emit at most once per RepeatInterval
//	Armed(kind) --other kind--> Armed(other)        emit
//	Armed --no frame for Window--> Idle
type Debouncer struct {
	cfg DebounceConfig

	state     debounceState
	kind      CommandKind
	pressedAt time.Time
	lastSeen  time.Time
	limiter   *rate.Limiter
}

func NewDebouncer(cfg DebounceConfig) *Debouncer {
	return &Debouncer{cfg: cfg}
}

// Accept feeds one decoded command observed at `at`. It returns the command
// kind to act on and true when the frame should produce an action.
// NoMatch never changes state. Repeat frames resolve to the armed kind.
func (d *Debouncer) Accept(cmd RemoteCommand, at time.Time) (CommandKind, bool) {
	if cmd.Kind == NoMatch {
		return NoMatch, false
	}
	d.Expire(at)

	kind := cmd.Kind
	if kind == Repeat {
		if d.state != debounceArmed {
			return NoMatch, false
		}
		kind = d.kind
	}

	if d.state == debounceArmed && kind == d.kind {
		d.lastSeen = at
		if !kind.repeatable() || at.Sub(d.pressedAt) < d.cfg.HoldDelay {
			return NoMatch, false
		}
		if d.limiter.AllowN(at, 1) {
			return kind, true
		}
		return NoMatch, false
	}

	d.arm(kind, at)
	return kind, true
}

func (d *Debouncer) arm(kind CommandKind, at time.Time) {
	d.state = debounceArmed
	d.kind = kind
	d.pressedAt = at
	d.lastSeen = at
	// A fresh limiter starts with one token, so the first repeat after
	// HoldDelay fires immediately and later ones are paced.
	d.limiter = rate.NewLimiter(rate.Every(d.cfg.RepeatInterval), 1)
}

// Expire returns to Idle once no frame has arrived for Window.
func (d *Debouncer) Expire(now time.Time) {
	if d.state == debounceArmed && now.Sub(d.lastSeen) > d.cfg.Window {
		d.state = debounceIdle
		d.kind = NoMatch
		d.limiter = nil
	}
}

// Armed reports the current gesture, if any.
func (d *Debouncer) Armed() (CommandKind, bool) {
	return d.kind, d.state == debounceArmed
}
