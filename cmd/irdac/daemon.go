package main

import (
	"context"
	"log/slog"
	"time"
)

// runDaemon is the only goroutine that owns DaemonState. It:
//   - receives Events from inputs, MQTT, IPC and HTTP
//   - emits a Tick on a fixed cadence for display timeout and gesture expiry
//   - reduces events into (state, commands)
//   - executes commands and feeds observations back into the reducer
//
// It returns when ctx is canceled or the events channel is closed.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	state *DaemonState,
	fx *Effects,
	tickEvery time.Duration,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}

	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	// Explicit queues so effects never re-enter the reducer.
	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev)
			if rr.State != nil {
				state = rr.State
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			logger.Debug("effect", "command", cmd.String())
			runEffect(fx, cmd, logger, enqueueEvent)
			flushEvents()
		}
	}

	step := func(ev Event) {
		enqueueEvent(ev)
		flushEvents()
		flushCommands()
	}

	step(TimedEvent{Event: Boot{}, At: time.Now()})

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			if _, timed := ev.(TimedEvent); !timed {
				ev = TimedEvent{Event: ev, At: time.Now()}
			}
			step(ev)

		case now := <-ticker.C:
			step(Tick{Now: now})
		}
	}
}

// trySend delivers ev without blocking. Producers outside the daemon use it so
// a stalled loop drops input rather than wedging a reader.
func trySend(events chan<- Event, ev Event, logger *slog.Logger) bool {
	select {
	case events <- ev:
		return true
	default:
		logger.Warn("event queue full, dropping event", "event", eventName(ev))
		return false
	}
}

func eventName(ev Event) string {
	if te, ok := ev.(TimedEvent); ok {
		ev = te.Event
	}
	switch e := ev.(type) {
	case IRCommandReceived:
		return "ir:" + e.Command.Kind.String()
	case ExternalVolumeSet:
		return "volume_set"
	case ExternalSourceSet:
		return "source_set"
	case DisplayMessage:
		return "display_text"
	case NowPlayingChanged:
		return "now_playing"
	case AttenuationApplied:
		return "attenuation_applied"
	case EffectFailed:
		return "effect_failed"
	case RequestStateSnapshot:
		return "state_snapshot"
	default:
		return "event"
	}
}
