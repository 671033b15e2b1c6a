package main

import (
	"context"
	"log/slog"
	"time"
)

// Attenuator sets the analogue or digital output level of the DAC.
type Attenuator interface {
	SetAttenuation(ctx context.Context, db float64) error
	Close() error
}

// nullAttenuator is used when no DAC backend is configured.
type nullAttenuator struct {
	logger *slog.Logger
}

func (n nullAttenuator) SetAttenuation(_ context.Context, db float64) error {
	n.logger.Debug("attenuation (no backend)", "db", db)
	return nil
}

func (nullAttenuator) Close() error { return nil }

// dacWorker serializes DAC writes off the daemon loop. Bursts of volume
// changes collapse to the newest level; the outcome is reported back as an
// event so the reducer can track what the hardware actually holds.
type dacWorker struct {
	dac     Attenuator
	timeout time.Duration
	pending *latestWins[float64]
	report  func(Event)
	logger  *slog.Logger
	now     func() time.Time
}

func newDACWorker(dac Attenuator, timeout time.Duration, report func(Event), logger *slog.Logger) *dacWorker {
	return &dacWorker{
		dac:     dac,
		timeout: timeout,
		pending: newLatestWins[float64](),
		report:  report,
		logger:  logger,
		now:     time.Now,
	}
}

func (w *dacWorker) Submit(db float64) { w.pending.Submit(db) }

func (w *dacWorker) Run(ctx context.Context) {
	w.pending.Run(ctx, func(db float64) {
		wctx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.dac.SetAttenuation(wctx, db)
		cancel()
		if err != nil {
			w.logger.Error("set attenuation failed", "error", err, "db", db)
			w.report(EffectFailed{Command: CmdSetAttenuation{DB: db}, Err: err, At: w.now()})
			return
		}
		w.report(AttenuationApplied{DB: db, At: w.now()})
	})
}
