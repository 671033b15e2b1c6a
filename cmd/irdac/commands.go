package main

import (
	"fmt"
	"time"
)

// Command is a side effect requested by the reducer and executed by runEffect.
type Command interface {
	commandMarker()
	String() string
}

// CmdSetAttenuation writes a new level to the DAC.
type CmdSetAttenuation struct {
	DB float64
}

func (CmdSetAttenuation) commandMarker() {}
func (c CmdSetAttenuation) String() string {
	return fmt.Sprintf("CmdSetAttenuation(db=%.2f)", c.DB)
}

// CmdPublishVolume announces the current step to the outside world.
type CmdPublishVolume struct {
	Step int
	DB   float64
	At   time.Time
}

func (CmdPublishVolume) commandMarker() {}
func (c CmdPublishVolume) String() string {
	return fmt.Sprintf("CmdPublishVolume(step=%d, db=%.2f)", c.Step, c.DB)
}

// CmdPublishSource announces the selected source.
type CmdPublishSource struct {
	Source Source
	At     time.Time
}

func (CmdPublishSource) commandMarker() {}
func (c CmdPublishSource) String() string {
	return fmt.Sprintf("CmdPublishSource(source=%s)", c.Source)
}

// CmdSelectInput drives the input select lines.
type CmdSelectInput struct {
	Source Source
}

func (CmdSelectInput) commandMarker() {}
func (c CmdSelectInput) String() string {
	return fmt.Sprintf("CmdSelectInput(source=%s)", c.Source)
}

// CmdRender pushes a frame to the display.
type CmdRender struct {
	Frame Frame
}

func (CmdRender) commandMarker() {}
func (c CmdRender) String() string {
	return fmt.Sprintf("CmdRender(visible=%v, lines=%d)", c.Frame.Visible, len(c.Frame.Lines))
}

// CmdReportRejected records a rejected external request.
type CmdReportRejected struct {
	Origin string
	Err    error
}

func (CmdReportRejected) commandMarker() {}
func (c CmdReportRejected) String() string {
	return fmt.Sprintf("CmdReportRejected(origin=%s, err=%v)", c.Origin, c.Err)
}

// CmdPublishStateSnapshot delivers a snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }
