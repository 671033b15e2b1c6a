package main

import (
	"context"
	"log/slog"
	"strings"
)

// Display renders frames on a physical or virtual panel.
type Display interface {
	Render(Frame) error
}

// logDisplay writes frames to the log. It is always active so a headless box
// still shows what the panel would.
type logDisplay struct {
	logger *slog.Logger
}

func (d logDisplay) Render(f Frame) error {
	if !f.Visible {
		d.logger.Debug("display off")
		return nil
	}
	d.logger.Debug("display", "text", strings.Join(f.Lines, " | "))
	return nil
}

// multiDisplay renders to every sink and returns the first error.
type multiDisplay []Display

func (m multiDisplay) Render(f Frame) error {
	var first error
	for _, d := range m {
		if err := d.Render(f); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// displayWorker keeps panel I/O off the daemon loop. Only the newest frame is
// drawn.
type displayWorker struct {
	display Display
	pending *latestWins[Frame]
	logger  *slog.Logger
}

func newDisplayWorker(display Display, logger *slog.Logger) *displayWorker {
	return &displayWorker{
		display: display,
		pending: newLatestWins[Frame](),
		logger:  logger,
	}
}

func (w *displayWorker) Submit(f Frame) { w.pending.Submit(f) }

func (w *displayWorker) Run(ctx context.Context) {
	w.pending.Run(ctx, func(f Frame) {
		if err := w.display.Render(f); err != nil {
			w.logger.Warn("display render failed", "error", err)
		}
	})
}
