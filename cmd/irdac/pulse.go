package main

import "time"

// Pulse is one stretch of constant receiver output. Mark means carrier present.
type Pulse struct {
	Mark     bool
	Duration time.Duration
}

// NEC timings (Apple remotes).
const (
	necLeaderMark  = 9000 * time.Microsecond
	necLeaderSpace = 4500 * time.Microsecond
	necRepeatSpace = 2250 * time.Microsecond
	necBitMark     = 560 * time.Microsecond
	necZeroSpace   = 560 * time.Microsecond
	necOneSpace    = 1690 * time.Microsecond
	necBits        = 32
)

// Sony SIRC timings. Bit value is carried by the mark width.
const (
	sircLeaderMark = 2400 * time.Microsecond
	sircSpace      = 600 * time.Microsecond
	sircZeroMark   = 600 * time.Microsecond
	sircOneMark    = 1200 * time.Microsecond
)

// frameGap separates two transmissions on the line.
const frameGap = 10 * time.Millisecond

// within reports whether d is inside ±30% of target.
func within(d, target time.Duration) bool {
	tol := target * 3 / 10
	return d >= target-tol && d <= target+tol
}

// DecodePulses decodes one frame of NEC or Sony SIRC pulses. Bits are
// assembled least-significant first, which is how both protocols transmit.
func DecodePulses(p []Pulse) (IRFrame, bool) {
	if len(p) < 2 || !p[0].Mark || p[1].Mark {
		return IRFrame{}, false
	}
	switch {
	case within(p[0].Duration, necLeaderMark):
		return decodeNEC(p)
	case within(p[0].Duration, sircLeaderMark):
		return decodeSIRC(p)
	}
	return IRFrame{}, false
}

func decodeNEC(p []Pulse) (IRFrame, bool) {
	switch {
	case within(p[1].Duration, necRepeatSpace):
		return IRFrame{Protocol: ProtocolNEC, Repeat: true}, true
	case !within(p[1].Duration, necLeaderSpace):
		return IRFrame{}, false
	}

	if len(p) < 2+2*necBits {
		return IRFrame{}, false
	}
	var code uint32
	for i := 0; i < necBits; i++ {
		mark, space := p[2+2*i], p[3+2*i]
		if !mark.Mark || space.Mark || !within(mark.Duration, necBitMark) {
			return IRFrame{}, false
		}
		switch {
		case within(space.Duration, necOneSpace):
			code |= 1 << uint(i)
		case within(space.Duration, necZeroSpace):
		default:
			return IRFrame{}, false
		}
	}
	return IRFrame{Code: code, Protocol: ProtocolNEC}, true
}

func decodeSIRC(p []Pulse) (IRFrame, bool) {
	if !within(p[1].Duration, sircSpace) {
		return IRFrame{}, false
	}

	var code uint32
	n := 0
	for i := 2; i < len(p); i += 2 {
		mark := p[i]
		if !mark.Mark {
			return IRFrame{}, false
		}
		switch {
		case within(mark.Duration, sircOneMark):
			code |= 1 << uint(n)
		case within(mark.Duration, sircZeroMark):
		default:
			return IRFrame{}, false
		}
		n++
		if n > 20 {
			return IRFrame{}, false
		}
		// The trailing space after the last bit is the inter-frame gap.
		if i+1 < len(p) && !within(p[i+1].Duration, sircSpace) {
			break
		}
	}

	switch n {
	case 12, 15, 20:
		return IRFrame{Code: code, Protocol: ProtocolSony}, true
	}
	return IRFrame{}, false
}

// pulseAssembler turns line transitions into frames. It is fed the level that
// just ended and how long it lasted; a long idle space closes the frame.
type pulseAssembler struct {
	pulses []Pulse
}

// Add appends a completed level. It returns the finished frame's pulses when
// a space longer than frameGap ends one.
func (a *pulseAssembler) Add(mark bool, d time.Duration) ([]Pulse, bool) {
	if !mark && d >= frameGap {
		if len(a.pulses) == 0 {
			return nil, false
		}
		out := a.pulses
		a.pulses = nil
		return out, true
	}
	if len(a.pulses) == 0 && !mark {
		// Leading idle before the first mark.
		return nil, false
	}
	a.pulses = append(a.pulses, Pulse{Mark: mark, Duration: d})
	if len(a.pulses) > 2+2*necBits+2 {
		// Runaway noise; start over.
		a.pulses = nil
	}
	return nil, false
}

// Flush returns any pending pulses, used when the line has been idle.
func (a *pulseAssembler) Flush() ([]Pulse, bool) {
	if len(a.pulses) == 0 {
		return nil, false
	}
	out := a.pulses
	a.pulses = nil
	return out, true
}
