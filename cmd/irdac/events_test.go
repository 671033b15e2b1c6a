package main

import (
	"testing"
)

func TestUnmarshalEvent(t *testing.T) {
	dec := NewDecoder(nil)

	ev, err := UnmarshalEvent([]byte(`{"type":"ir_code","data":{"code":"0x4BA5","protocol":"sony"}}`), dec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ir := ev.(IRCommandReceived); ir.Command.Kind != VolumeUp || ir.Input != "ipc" {
		t.Errorf("expected volume_up from ipc, got %+v", ir)
	}

	ev, err = UnmarshalEvent([]byte(`{"type":"ir_code","data":{"code":19364}}`), dec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ir := ev.(IRCommandReceived); ir.Command.Kind != VolumeDown {
		t.Errorf("expected numeric 0x4BA4 to be volume_down, got %s", ir.Command.Kind)
	}

	ev, err = UnmarshalEvent([]byte(`{"type":"ir_code","data":{"protocol":"nec","repeat":true}}`), dec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ir := ev.(IRCommandReceived); ir.Command.Kind != Repeat {
		t.Errorf("expected repeat, got %s", ir.Command.Kind)
	}

	ev, err = UnmarshalEvent([]byte(`{"type":"remote_command","data":{"command":"source_next"}}`), dec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ir := ev.(IRCommandReceived); ir.Command.Kind != SourceNext {
		t.Errorf("expected source_next, got %s", ir.Command.Kind)
	}

	ev, err = UnmarshalEvent([]byte(`{"type":"source_set","data":{"source":"coax"}}`), dec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s := ev.(ExternalSourceSet); s.Source != SourceCoax || s.Origin != "ipc" {
		t.Errorf("expected Coax from ipc, got %+v", s)
	}

	ev, err = UnmarshalEvent([]byte(`{"type":"now_playing","data":{"source":"radio","details":"x"}}`), dec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if np := ev.(NowPlayingChanged); np.NowPlaying.Source != "radio" {
		t.Errorf("expected radio, got %+v", np)
	}
}

func TestUnmarshalEvent_Errors(t *testing.T) {
	dec := NewDecoder(nil)
	for _, line := range []string{
		`{`,
		`{"type":"warp"}`,
		`{"type":"ir_code","data":{}}`,
		`{"type":"ir_code","data":{"code":"0xZZ"}}`,
		`{"type":"ir_code","data":{"code":1,"protocol":"rc6"}}`,
		`{"type":"remote_command","data":{"command":"mute"}}`,
		`{"type":"volume_set","data":{}}`,
		`{"type":"volume_set","data":{"step":1,"db":-1}}`,
		`{"type":"source_set","data":{"source":"phono"}}`,
	} {
		if _, err := UnmarshalEvent([]byte(line), dec, nil); err == nil {
			t.Errorf("%s: expected error", line)
		}
	}
	if _, err := UnmarshalEvent([]byte(`{"type":"ir_code","data":{"code":1}}`), nil, nil); err == nil {
		t.Error("expected error without a decoder")
	}
}

func TestUnmarshalEvent_SourceSet(t *testing.T) {
	cfg := DefaultConfig()
	labels := cfg.SourceLabels()

	for _, line := range []string{
		`{"type":"source_set","data":{}}`,
		`{"type":"source_set"}`,
		`{"type":"source_set","data":{"source":3}}`,
	} {
		if _, err := UnmarshalEvent([]byte(line), nil, labels); err == nil {
			t.Errorf("%s: expected error", line)
		}
	}

	ev, err := UnmarshalEvent([]byte(`{"type":"source_set","data":{"source":"tv","origin":"irdac-ctl"}}`), nil, labels)
	if err != nil {
		t.Fatal(err)
	}
	if s := ev.(ExternalSourceSet); s.Source != SourceOptical || s.Origin != "irdac-ctl" {
		t.Errorf("expected label TV to select Optical from irdac-ctl, got %+v", s)
	}
}

func TestSource_ParseAndCycle(t *testing.T) {
	if SourceOptical.Next() != SourceCoax || SourceCoax.Next() != SourceI2S || SourceI2S.Next() != SourceOptical {
		t.Error("expected Optical -> Coax -> I2S -> Optical")
	}
	for in, want := range map[string]Source{"TOSLINK": SourceOptical, " coaxial ": SourceCoax, "i2s": SourceI2S} {
		if got, err := ParseSource(in); err != nil || got != want {
			t.Errorf("ParseSource(%q): expected %s, got %s (%v)", in, want, got, err)
		}
	}
	var s Source
	if err := s.UnmarshalJSON([]byte(`"Coax"`)); err != nil || s != SourceCoax {
		t.Errorf("expected JSON Coax, got %s (%v)", s, err)
	}
}
