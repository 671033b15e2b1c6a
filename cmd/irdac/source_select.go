package main

import (
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// InputSelector switches the DAC's active digital input.
type InputSelector interface {
	Select(Source) error
}

// gpioSelector drives one output line per source: the active source's line
// high, every other line low.
type gpioSelector struct {
	mu     sync.Mutex
	pins   map[Source]gpio.PinOut
	logger *slog.Logger
}

// newGPIOSelector resolves the configured pins. Returns nil when no select
// lines are configured.
func newGPIOSelector(pinNames map[string]string, logger *slog.Logger) (*gpioSelector, error) {
	if len(pinNames) == 0 {
		return nil, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: host init failed: %w", err)
	}

	pins := make(map[Source]gpio.PinOut, len(pinNames))
	for name, pinName := range pinNames {
		src, err := ParseSource(name)
		if err != nil {
			return nil, err
		}
		p := gpioreg.ByName(pinName)
		if p == nil {
			return nil, fmt.Errorf("gpio: failed to open %s (select %s)", pinName, src)
		}
		pins[src] = p
	}
	return &gpioSelector{pins: pins, logger: logger}, nil
}

func (g *gpioSelector) Select(src Source) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Drop the old line before raising the new one so two inputs are never
	// routed at once.
	for s, p := range g.pins {
		if s == src {
			continue
		}
		if err := p.Out(gpio.Low); err != nil {
			return fmt.Errorf("gpio: release %s: %w", s, err)
		}
	}
	if p, ok := g.pins[src]; ok {
		if err := p.Out(gpio.High); err != nil {
			return fmt.Errorf("gpio: select %s: %w", src, err)
		}
	}
	g.logger.Debug("input selected", "source", src)
	return nil
}
