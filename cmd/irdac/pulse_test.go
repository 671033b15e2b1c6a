package main

import (
	"testing"
	"time"
)

// necTrain synthesizes an NEC frame, LSB first, with a final stop mark.
func necTrain(code uint32) []Pulse {
	p := []Pulse{{true, necLeaderMark}, {false, necLeaderSpace}}
	for i := 0; i < 32; i++ {
		space := necZeroSpace
		if code&(1<<uint(i)) != 0 {
			space = necOneSpace
		}
		p = append(p, Pulse{true, necBitMark}, Pulse{false, space})
	}
	return append(p, Pulse{true, necBitMark})
}

// sircTrain synthesizes a Sony frame of n bits. The gap after the last mark
// is not part of the frame.
func sircTrain(code uint32, n int) []Pulse {
	p := []Pulse{{true, sircLeaderMark}, {false, sircSpace}}
	for i := 0; i < n; i++ {
		mark := sircZeroMark
		if code&(1<<uint(i)) != 0 {
			mark = sircOneMark
		}
		p = append(p, Pulse{true, mark})
		if i < n-1 {
			p = append(p, Pulse{false, sircSpace})
		}
	}
	return p
}

// jitter stretches every pulse by pct percent.
func jitter(p []Pulse, pct int) []Pulse {
	out := make([]Pulse, len(p))
	for i, x := range p {
		out[i] = Pulse{x.Mark, x.Duration + x.Duration*time.Duration(pct)/100}
	}
	return out
}

func TestDecodePulses_NEC(t *testing.T) {
	frame, ok := DecodePulses(necTrain(0xDCC8CD06))
	if !ok {
		t.Fatal("expected NEC frame to decode")
	}
	if frame.Code != 0xDCC8CD06 || frame.Protocol != ProtocolNEC || frame.Repeat {
		t.Errorf("expected NEC 0xDCC8CD06, got %+v", frame)
	}

	frame, ok = DecodePulses(jitter(necTrain(0x671A1C02), 20))
	if !ok || frame.Code != 0x671A1C02 {
		t.Errorf("expected decode within tolerance, got %+v/%v", frame, ok)
	}
}

func TestDecodePulses_NECRepeat(t *testing.T) {
	frame, ok := DecodePulses([]Pulse{{true, necLeaderMark}, {false, necRepeatSpace}, {true, necBitMark}})
	if !ok || !frame.Repeat || frame.Protocol != ProtocolNEC {
		t.Errorf("expected NEC repeat, got %+v/%v", frame, ok)
	}
}

func TestDecodePulses_SIRC(t *testing.T) {
	for _, n := range []int{12, 15, 20} {
		frame, ok := DecodePulses(sircTrain(0x4BA5, n))
		if !ok {
			t.Errorf("%d bits: expected decode", n)
			continue
		}
		want := uint32(0x4BA5) & (1<<uint(n) - 1)
		if frame.Code != want || frame.Protocol != ProtocolSony {
			t.Errorf("%d bits: expected Sony 0x%X, got %+v", n, want, frame)
		}
	}
}

func TestDecodePulses_Rejects(t *testing.T) {
	cases := map[string][]Pulse{
		"empty":            nil,
		"starts on space":  {{false, necLeaderSpace}, {true, necLeaderMark}},
		"bad leader":       {{true, 5 * time.Millisecond}, {false, necLeaderSpace}},
		"truncated nec":    necTrain(0x1)[:20],
		"13 bit sirc":      sircTrain(0x1, 13),
		"out of tolerance": jitter(necTrain(0x1), 40),
	}
	for name, p := range cases {
		if frame, ok := DecodePulses(p); ok {
			t.Errorf("%s: expected rejection, got %+v", name, frame)
		}
	}
}

func TestPulseAssembler_SplitsOnGap(t *testing.T) {
	var a pulseAssembler

	if _, ok := a.Add(false, 50*time.Millisecond); ok {
		t.Fatal("expected leading idle to be ignored")
	}
	train := sircTrain(0x4BA4, 12)
	for _, p := range train {
		if _, ok := a.Add(p.Mark, p.Duration); ok {
			t.Fatal("expected no frame before the gap")
		}
	}
	got, ok := a.Add(false, 25*time.Millisecond)
	if !ok {
		t.Fatal("expected frame on gap")
	}
	if len(got) != len(train) {
		t.Fatalf("expected %d pulses, got %d", len(train), len(got))
	}
	if frame, ok := DecodePulses(got); !ok || frame.Code != 0x4BA4 {
		t.Errorf("expected assembled frame to decode to 0x4BA4, got %+v/%v", frame, ok)
	}

	if _, ok := a.Flush(); ok {
		t.Error("expected nothing pending after gap")
	}
	a.Add(true, necLeaderMark)
	if p, ok := a.Flush(); !ok || len(p) != 1 {
		t.Errorf("expected Flush to return the pending pulse, got %v/%v", p, ok)
	}
}
