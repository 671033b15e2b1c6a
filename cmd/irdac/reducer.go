package main

import (
	"fmt"
	"time"
)

// ReduceResult is the output of Reduce: next state plus the side effects to run.
type ReduceResult struct {
	State    *DaemonState
	Commands []Command
}

// Reduce applies one event to the daemon state.
//
// Rules:
//   - no I/O, no blocking, no logging
//   - all mutation goes through the state's components
//   - side effects are returned as Commands for the daemon loop to execute
//
// Events that need a timestamp must arrive wrapped in TimedEvent.
func Reduce(s *DaemonState, e Event) ReduceResult {
	var at time.Time
	if te, ok := e.(TimedEvent); ok {
		e, at = te.Event, te.At
	}

	var cmds []Command

	switch ev := e.(type) {
	case Boot:
		src := s.Panel.Source()
		db := s.Volume.CurrentDB()
		cmds = append(cmds,
			CmdSetAttenuation{DB: db},
			CmdSelectInput{Source: src},
			CmdPublishVolume{Step: s.Volume.Step(), DB: db, At: at},
			CmdPublishSource{Source: src, At: at},
			s.render(),
		)

	case Tick:
		s.Remote.Expire(ev.Now)
		if s.Panel.Tick(ev.Now) {
			cmds = append(cmds, s.render())
		}

	case IRCommandReceived:
		kind, ok := s.Remote.Accept(ev.Command, at)
		if !ok {
			break
		}
		switch kind {
		case VolumeUp:
			cmds = append(cmds, s.volumeKey(s.Volume.Increment(), at)...)
		case VolumeDown:
			cmds = append(cmds, s.volumeKey(s.Volume.Decrement(), at)...)
		case SourceNext:
			cmds = append(cmds, s.selectSource(s.Panel.Source().Next(), at)...)
		}

	case ExternalVolumeSet:
		step, err := s.resolveVolumeSet(ev)
		if err == nil {
			var changed bool
			changed, err = s.Volume.SetStep(step)
			if changed {
				cmds = append(cmds, s.volumeChanged(at)...)
			}
		}
		if err != nil {
			s.Rejected++
			cmds = append(cmds, CmdReportRejected{Origin: ev.Origin, Err: err})
		}

	case ExternalSourceSet:
		cmds = append(cmds, s.selectSource(ev.Source, at)...)

	case DisplayMessage:
		s.Panel.SetMessage(ev.Text, at)
		cmds = append(cmds, s.render())

	case NowPlayingChanged:
		s.Panel.SetNowPlaying(ev.NowPlaying)
		if s.Panel.Visible() {
			cmds = append(cmds, s.render())
		}

	case RequestStateSnapshot:
		cmds = append(cmds, CmdPublishStateSnapshot{Reply: ev.Reply, Snapshot: s.Snapshot()})

	case AttenuationApplied:
		s.DAC.AppliedDB = ev.DB
		s.DAC.Known = true
		s.DAC.At = ev.At
		s.DAC.LastError = ""

	case EffectFailed:
		if _, ok := ev.Command.(CmdSetAttenuation); ok {
			s.DAC.Failures++
			if ev.Err != nil {
				s.DAC.LastError = ev.Err.Error()
			}
		}
	}

	return ReduceResult{State: s, Commands: cmds}
}

// volumeChanged wakes the display and emits the effects of a new step.
func (s *DaemonState) volumeChanged(at time.Time) []Command {
	s.Panel.NoteActivity(at)
	db := s.Volume.CurrentDB()
	return []Command{
		CmdSetAttenuation{DB: db},
		CmdPublishVolume{Step: s.Volume.Step(), DB: db, At: at},
		s.render(),
	}
}

// volumeKey handles a debounced volume press. A press at either end of the
// range changes nothing but still wakes the display.
func (s *DaemonState) volumeKey(changed bool, at time.Time) []Command {
	if changed {
		return s.volumeChanged(at)
	}
	s.Panel.NoteActivity(at)
	return []Command{s.render()}
}

// selectSource always wakes the display; input lines and the broker are only
// touched when the source actually changes.
func (s *DaemonState) selectSource(src Source, at time.Time) []Command {
	var cmds []Command
	if s.Panel.SelectSource(src, at) {
		cmds = append(cmds,
			CmdSelectInput{Source: src},
			CmdPublishSource{Source: src, At: at},
		)
	}
	return append(cmds, s.render())
}

func (s *DaemonState) resolveVolumeSet(ev ExternalVolumeSet) (int, error) {
	switch {
	case ev.Step != nil && ev.DB == nil:
		return *ev.Step, nil
	case ev.DB != nil && ev.Step == nil:
		return s.Volume.StepForDB(*ev.DB)
	default:
		return 0, fmt.Errorf("%w: volume request needs exactly one of step or db", ErrOutOfRange)
	}
}

func (s *DaemonState) render() Command {
	return CmdRender{Frame: s.Panel.Frame(s.Volume.Step(), s.Volume.CurrentDB())}
}
