package main

import (
	"testing"
	"time"
)

func defaultDebounceConfig() DebounceConfig {
	cfg := DefaultConfig()
	return cfg.RemoteTiming()
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestDebouncer_SonyEchoesAreOnePress(t *testing.T) {
	d := NewDebouncer(defaultDebounceConfig())
	base := time.Unix(1000, 0)
	up := RemoteCommand{Kind: VolumeUp, Family: FamilySony}

	emits := 0
	for _, at := range []int{0, 45, 90} {
		if _, ok := d.Accept(up, base.Add(ms(at))); ok {
			emits++
		}
	}
	if emits != 1 {
		t.Fatalf("expected 1 emit for a triple-sent press, got %d", emits)
	}

	// Next press after the window has closed.
	kind, ok := d.Accept(up, base.Add(ms(400)))
	if !ok || kind != VolumeUp {
		t.Errorf("expected a new press after the window, got %s/%v", kind, ok)
	}
}

func TestDebouncer_HoldAutoRepeats(t *testing.T) {
	d := NewDebouncer(defaultDebounceConfig())
	base := time.Unix(1000, 0)
	up := RemoteCommand{Kind: VolumeUp, Family: FamilySony}

	var got []int
	for at := 0; at <= 990; at += 45 {
		if _, ok := d.Accept(up, base.Add(ms(at))); ok {
			got = append(got, at)
		}
	}

	want := []int{0, 315, 450, 585, 720, 855, 990}
	if len(got) != len(want) {
		t.Fatalf("expected emits at %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected emits at %v, got %v", want, got)
		}
	}
}

func TestDebouncer_ExpiresAfterWindow(t *testing.T) {
	d := NewDebouncer(defaultDebounceConfig())
	base := time.Unix(1000, 0)
	down := RemoteCommand{Kind: VolumeDown}

	d.Accept(down, base)
	if _, ok := d.Accept(down, base.Add(ms(200))); ok {
		t.Error("expected frame exactly at the window edge to belong to the same gesture")
	}

	d.Expire(base.Add(ms(401)))
	if _, armed := d.Armed(); armed {
		t.Error("expected Idle after the window elapsed")
	}
	if _, ok := d.Accept(down, base.Add(ms(402))); !ok {
		t.Error("expected a fresh press to emit after expiry")
	}
}

func TestDebouncer_RepeatFrames(t *testing.T) {
	d := NewDebouncer(defaultDebounceConfig())
	base := time.Unix(1000, 0)
	rep := RemoteCommand{Kind: Repeat}

	if _, ok := d.Accept(rep, base); ok {
		t.Error("expected a repeat frame while idle to be dropped")
	}

	d.Accept(RemoteCommand{Kind: VolumeDown, Family: FamilyApple}, base)
	var kinds []CommandKind
	// NEC repeat bursts arrive every ~108ms.
	for at := 108; at <= 756; at += 108 {
		if kind, ok := d.Accept(rep, base.Add(ms(at))); ok {
			kinds = append(kinds, kind)
		}
	}
	if len(kinds) == 0 {
		t.Fatal("expected held repeat frames to produce commands")
	}
	for _, k := range kinds {
		if k != VolumeDown {
			t.Errorf("expected repeats to resolve to volume_down, got %s", k)
		}
	}
}

func TestDebouncer_KindChangeEmitsImmediately(t *testing.T) {
	d := NewDebouncer(defaultDebounceConfig())
	base := time.Unix(1000, 0)

	d.Accept(RemoteCommand{Kind: VolumeUp}, base)
	kind, ok := d.Accept(RemoteCommand{Kind: VolumeDown}, base.Add(ms(45)))
	if !ok || kind != VolumeDown {
		t.Errorf("expected immediate volume_down, got %s/%v", kind, ok)
	}
	if k, armed := d.Armed(); !armed || k != VolumeDown {
		t.Errorf("expected armed with volume_down, got %s/%v", k, armed)
	}
}

func TestDebouncer_SourceNextDoesNotRepeat(t *testing.T) {
	d := NewDebouncer(defaultDebounceConfig())
	base := time.Unix(1000, 0)
	src := RemoteCommand{Kind: SourceNext}

	emits := 0
	for at := 0; at <= 900; at += 45 {
		if _, ok := d.Accept(src, base.Add(ms(at))); ok {
			emits++
		}
	}
	if emits != 1 {
		t.Errorf("expected holding source_next to emit once, got %d", emits)
	}
}

func TestDebouncer_NoMatchIsIgnored(t *testing.T) {
	d := NewDebouncer(defaultDebounceConfig())
	base := time.Unix(1000, 0)

	d.Accept(RemoteCommand{Kind: VolumeUp}, base)
	if _, ok := d.Accept(RemoteCommand{Kind: NoMatch, Code: 0x1}, base.Add(ms(45))); ok {
		t.Error("expected NoMatch to produce nothing")
	}
	if k, armed := d.Armed(); !armed || k != VolumeUp {
		t.Errorf("expected NoMatch to leave state untouched, got %s/%v", k, armed)
	}
}
