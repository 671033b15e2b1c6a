package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// runGPIOIR captures a demodulated IR receiver (TSOP-style, active low) on a
// GPIO line and decodes NEC and Sony frames in software.
func runGPIOIR(ctx context.Context, pinName string, dec *Decoder, events chan<- Event, logger *slog.Logger) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("gpio: host init failed: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return fmt.Errorf("gpio: failed to open %s (IR receiver)", pinName)
	}
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return fmt.Errorf("gpio: configure %s for edge capture: %w", pinName, err)
	}
	defer func() { _ = pin.Halt() }()
	logger.Info("capturing IR on gpio", "pin", pinName)

	var asm pulseAssembler
	level := pin.Read()
	last := time.Now()

	decode := func(pulses []Pulse, at time.Time) {
		frame, ok := DecodePulses(pulses)
		if !ok {
			logger.Debug("gpio IR: undecodable frame", "pulses", len(pulses))
			return
		}
		emitRemote(events, dec.Decode(frame), "gpio", at, logger)
	}

	for ctx.Err() == nil {
		if !pin.WaitForEdge(frameGap) {
			if pulses, ok := asm.Flush(); ok {
				decode(pulses, last)
			}
			continue
		}
		now := time.Now()
		// The receiver pulls low while it sees carrier.
		if pulses, ok := asm.Add(level == gpio.Low, now.Sub(last)); ok {
			decode(pulses, last)
		}
		level = pin.Read()
		last = now
	}
	return nil
}
