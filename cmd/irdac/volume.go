package main

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrOutOfRange is returned when a requested step, dB value or source lies
// outside the configured domain. State is left unchanged.
var ErrOutOfRange = errors.New("out of range")

// VolumeAnchor selects which end of the dB range the step curve is built from.
type VolumeAnchor string

const (
	// AnchorMin starts the curve at min_db: db = min_db + step*slope.
	AnchorMin VolumeAnchor = "min"
	// AnchorMax ends the curve at max_db: db = max_db - (steps-step)*slope.
	AnchorMax VolumeAnchor = "max"
)

// dbEpsilon absorbs float noise when comparing requested dB targets to the range.
const dbEpsilon = 1e-9

// VolumeModel owns the current volume step. Steps are integers in [0, Steps];
// the attenuation in dB is always derived from the step, never stored.
//
// slope = twice_loud_db / twice_loud_steps, so every twice_loud_steps steps
// change perceived loudness by a factor of two. Step 0 and step Steps are
// pinned to min_db and max_db so that the ends of the control always reach
// the ends of the range, whatever the slope.
type VolumeModel struct {
	cfg  *VolumeConfig
	step int
}

// NewVolumeModel returns a model positioned at initial (clamped into range).
func NewVolumeModel(cfg *VolumeConfig, initial int) *VolumeModel {
	v := &VolumeModel{cfg: cfg}
	v.step = v.clampStep(initial)
	return v
}

func (v *VolumeModel) Step() int  { return v.step }
func (v *VolumeModel) Steps() int { return v.cfg.Steps }

// Increment raises the volume by one step. It reports whether the step changed;
// at the top of the range it is a no-op.
func (v *VolumeModel) Increment() bool {
	if v.step >= v.cfg.Steps {
		return false
	}
	v.step++
	return true
}

// Decrement lowers the volume by one step. At zero it is a no-op.
func (v *VolumeModel) Decrement() bool {
	if v.step <= 0 {
		return false
	}
	v.step--
	return true
}

// SetStep moves to an absolute step. Values outside [0, Steps] are rejected
// with ErrOutOfRange and leave the current step untouched.
func (v *VolumeModel) SetStep(n int) (bool, error) {
	if n < 0 || n > v.cfg.Steps {
		return false, fmt.Errorf("%w: step %d not in [0, %d]", ErrOutOfRange, n, v.cfg.Steps)
	}
	if n == v.step {
		return false, nil
	}
	v.step = n
	return true, nil
}

// CurrentDB is the attenuation for the current step.
func (v *VolumeModel) CurrentDB() float64 {
	return v.DB(v.step)
}

// DB maps any step to its attenuation. Steps outside the range are clamped.
func (v *VolumeModel) DB(step int) float64 {
	step = v.clampStep(step)
	switch step {
	case 0:
		return v.cfg.MinDB
	case v.cfg.Steps:
		return v.cfg.MaxDB
	}

	var db float64
	if strings.EqualFold(v.cfg.Anchor, string(AnchorMax)) {
		db = v.cfg.MaxDB - float64(v.cfg.Steps-step)*v.slope()
	} else {
		db = v.cfg.MinDB + float64(step)*v.slope()
	}
	return clampFloat(db, v.cfg.MinDB, v.cfg.MaxDB)
}

// StepForDB returns the step whose attenuation is closest to db. Ties resolve
// to the quieter step. Targets outside [min_db, max_db] are rejected.
func (v *VolumeModel) StepForDB(db float64) (int, error) {
	if math.IsNaN(db) || db < v.cfg.MinDB-dbEpsilon || db > v.cfg.MaxDB+dbEpsilon {
		return 0, fmt.Errorf("%w: %.2f dB not in [%.2f, %.2f]", ErrOutOfRange, db, v.cfg.MinDB, v.cfg.MaxDB)
	}
	best := 0
	bestDiff := math.Inf(1)
	for s := 0; s <= v.cfg.Steps; s++ {
		d := math.Abs(v.DB(s) - db)
		if d < bestDiff-dbEpsilon {
			best, bestDiff = s, d
		}
	}
	return best, nil
}

func (v *VolumeModel) slope() float64 {
	return v.cfg.TwiceLoudDB / float64(v.cfg.TwiceLoudSteps)
}

func (v *VolumeModel) clampStep(n int) int {
	if n < 0 {
		return 0
	}
	if n > v.cfg.Steps {
		return v.cfg.Steps
	}
	return n
}

func clampFloat(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
