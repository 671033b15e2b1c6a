package main

import (
	"errors"
	"math"
	"testing"
)

func defaultVolumeConfig() *VolumeConfig {
	cfg := DefaultConfig()
	return &cfg.Volume
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestVolume_EndpointsArePinned(t *testing.T) {
	v := NewVolumeModel(defaultVolumeConfig(), 0)

	if got := v.DB(0); got != -60 {
		t.Errorf("expected step 0 at -60 dB, got %f", got)
	}
	if got := v.DB(100); got != 0 {
		t.Errorf("expected step 100 at 0 dB, got %f", got)
	}
	if got := v.DB(40); !approxEqual(got, -40) {
		t.Errorf("expected step 40 at -40 dB, got %f", got)
	}
	if got := v.DB(99); !approxEqual(got, -10.5) {
		t.Errorf("expected step 99 at -10.5 dB, got %f", got)
	}
}

func TestVolume_DBIsMonotonicAndInRange(t *testing.T) {
	cfgs := map[string]*VolumeConfig{
		"min anchor": defaultVolumeConfig(),
		"max anchor": func() *VolumeConfig {
			c := defaultVolumeConfig()
			c.Anchor = "max"
			return c
		}(),
		"steep slope": func() *VolumeConfig {
			c := defaultVolumeConfig()
			c.TwiceLoudSteps = 5
			return c
		}(),
	}

	for name, cfg := range cfgs {
		t.Run(name, func(t *testing.T) {
			v := NewVolumeModel(cfg, 0)
			prev := math.Inf(-1)
			for s := 0; s <= cfg.Steps; s++ {
				db := v.DB(s)
				if db < cfg.MinDB || db > cfg.MaxDB {
					t.Fatalf("step %d: %f dB outside [%f, %f]", s, db, cfg.MinDB, cfg.MaxDB)
				}
				if db < prev {
					t.Fatalf("step %d: %f dB is quieter than step %d (%f dB)", s, db, s-1, prev)
				}
				prev = db
			}
		})
	}
}

func TestVolume_TwiceLoudSpacing(t *testing.T) {
	cfg := defaultVolumeConfig()
	v := NewVolumeModel(cfg, 0)

	// Away from the pinned top step, every twice_loud_steps is twice_loud_db.
	for s := 0; s+cfg.TwiceLoudSteps < cfg.Steps; s++ {
		diff := v.DB(s+cfg.TwiceLoudSteps) - v.DB(s)
		if !approxEqual(diff, cfg.TwiceLoudDB) {
			t.Fatalf("steps %d..%d: expected %f dB apart, got %f", s, s+cfg.TwiceLoudSteps, cfg.TwiceLoudDB, diff)
		}
	}
}

func TestVolume_MaxAnchorSpacing(t *testing.T) {
	cfg := defaultVolumeConfig()
	cfg.Anchor = "MAX"
	v := NewVolumeModel(cfg, 0)

	if got := v.DB(99); !approxEqual(got, -0.5) {
		t.Errorf("expected step 99 at -0.5 dB with max anchor, got %f", got)
	}
	if got := v.DB(1); !approxEqual(got, -49.5) {
		t.Errorf("expected step 1 at -49.5 dB with max anchor, got %f", got)
	}
	if got := v.DB(0); got != -60 {
		t.Errorf("expected step 0 pinned to -60 dB with max anchor, got %f", got)
	}
}

func TestVolume_IncrementDecrementBoundaries(t *testing.T) {
	v := NewVolumeModel(defaultVolumeConfig(), 100)
	if v.Increment() {
		t.Error("expected Increment at the top to be a no-op")
	}
	if v.Step() != 100 {
		t.Errorf("expected step 100, got %d", v.Step())
	}

	v = NewVolumeModel(defaultVolumeConfig(), 0)
	if v.Decrement() {
		t.Error("expected Decrement at zero to be a no-op")
	}
	if !v.Increment() || v.Step() != 1 {
		t.Errorf("expected Increment to move to step 1, got %d", v.Step())
	}
}

func TestVolume_UpThenDownRoundTrips(t *testing.T) {
	v := NewVolumeModel(defaultVolumeConfig(), 40)
	before := v.CurrentDB()
	for i := 0; i < 7; i++ {
		v.Increment()
	}
	for i := 0; i < 7; i++ {
		v.Decrement()
	}
	if v.Step() != 40 || v.CurrentDB() != before {
		t.Errorf("expected step 40 at %f dB, got step %d at %f dB", before, v.Step(), v.CurrentDB())
	}
}

func TestVolume_SetStep(t *testing.T) {
	v := NewVolumeModel(defaultVolumeConfig(), 40)

	changed, err := v.SetStep(60)
	if err != nil || !changed {
		t.Fatalf("expected SetStep(60) to change the step, got changed=%v err=%v", changed, err)
	}
	if v.Step() != 60 {
		t.Errorf("expected step 60, got %d", v.Step())
	}

	changed, err = v.SetStep(60)
	if err != nil || changed {
		t.Errorf("expected SetStep to the same step to be a no-op, got changed=%v err=%v", changed, err)
	}

	for _, n := range []int{-1, 101, 1000} {
		_, err := v.SetStep(n)
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("SetStep(%d): expected ErrOutOfRange, got %v", n, err)
		}
	}
	if v.Step() != 60 {
		t.Errorf("expected rejected SetStep to keep step 60, got %d", v.Step())
	}
}

func TestVolume_StepForDB(t *testing.T) {
	v := NewVolumeModel(defaultVolumeConfig(), 0)

	cases := []struct {
		db   float64
		want int
	}{
		{-60, 0},
		{-40, 40},
		{-30, 60},
		{-30.25, 59}, // tie between 59 and 60 goes to the quieter step
		{-30.3, 59},
		{-5, 100},
		{0, 100},
	}
	for _, tc := range cases {
		got, err := v.StepForDB(tc.db)
		if err != nil {
			t.Errorf("StepForDB(%v): unexpected error %v", tc.db, err)
			continue
		}
		if got != tc.want {
			t.Errorf("StepForDB(%v): expected %d, got %d", tc.db, tc.want, got)
		}
	}

	for _, db := range []float64{-60.5, 0.5, math.NaN()} {
		if _, err := v.StepForDB(db); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("StepForDB(%v): expected ErrOutOfRange, got %v", db, err)
		}
	}
}

func TestVolume_InitialStepIsClamped(t *testing.T) {
	v := NewVolumeModel(defaultVolumeConfig(), 500)
	if v.Step() != 100 {
		t.Errorf("expected initial step clamped to 100, got %d", v.Step())
	}
}
