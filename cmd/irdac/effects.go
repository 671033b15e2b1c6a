package main

import (
	"errors"
	"log/slog"
	"time"
)

// Effects bundles the sinks commands are executed against. Every sink hands
// work off without blocking, so runEffect is safe to call from the daemon loop.
type Effects struct {
	DAC       *dacWorker
	Publisher StatePublisher
	Display   *displayWorker
	Inputs    InputSelector
}

// runEffect executes a single reducer-emitted Command. Failures that the
// reducer tracks are reported through onEvent; it never calls Reduce itself.
func runEffect(fx *Effects, cmd Command, logger *slog.Logger, onEvent func(Event)) {
	if fx == nil {
		fx = &Effects{}
	}
	now := time.Now()

	switch c := cmd.(type) {
	case CmdSetAttenuation:
		if fx.DAC == nil {
			onEvent(EffectFailed{Command: cmd, Err: errNoAttenuator, At: now})
			return
		}
		fx.DAC.Submit(c.DB)

	case CmdPublishVolume:
		if fx.Publisher != nil {
			fx.Publisher.PublishVolume(c.Step, c.DB, c.At)
		}

	case CmdPublishSource:
		if fx.Publisher != nil {
			fx.Publisher.PublishSource(c.Source, c.At)
		}

	case CmdSelectInput:
		if fx.Inputs == nil {
			return
		}
		if err := fx.Inputs.Select(c.Source); err != nil {
			logger.Error("input select failed", "error", err, "source", c.Source)
			onEvent(EffectFailed{Command: cmd, Err: err, At: now})
		}

	case CmdRender:
		if fx.Display != nil {
			fx.Display.Submit(c.Frame)
		}

	case CmdReportRejected:
		logger.Warn("request rejected", "origin", c.Origin, "error", c.Err)

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(EffectFailed{Command: cmd, Err: errUnknownCommand{cmd: cmd}, At: now})
	}
}

var errNoAttenuator = errors.New("no attenuator configured")

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
