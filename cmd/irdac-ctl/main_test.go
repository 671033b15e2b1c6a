package main

import (
	"encoding/json"
	"testing"
)

func TestBuildRequest(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"up"}, `{"type":"remote_command","data":{"command":"volume_up"}}`},
		{[]string{"volume-down"}, `{"type":"remote_command","data":{"command":"volume_down"}}`},
		{[]string{"next-source"}, `{"type":"remote_command","data":{"command":"source_next"}}`},
		{[]string{"volume", "40"}, `{"type":"volume_set","data":{"origin":"irdac-ctl","step":40}}`},
		{[]string{"vol", "-25.5", "dB"}, `{"type":"volume_set","data":{"db":-25.5,"origin":"irdac-ctl"}}`},
		{[]string{"source", "coax"}, `{"type":"source_set","data":{"origin":"irdac-ctl","source":"coax"}}`},
		{[]string{"display", "hello", "world"}, `{"type":"display_text","data":{"origin":"irdac-ctl","text":"hello world"}}`},
		{[]string{"code", "0x4BA5", "sony"}, `{"type":"ir_code","data":{"code":"0x4BA5","protocol":"sony"}}`},
		{[]string{"status"}, `{"type":"get_state"}`},
	}
	for _, tc := range cases {
		req, err := buildRequest(tc.args)
		if err != nil {
			t.Errorf("%v: unexpected error %v", tc.args, err)
			continue
		}
		b, err := json.Marshal(req)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tc.want {
			t.Errorf("%v: expected %s, got %s", tc.args, tc.want, b)
		}
	}
}

func TestBuildRequest_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"volume"},
		{"volume", "loud"},
		{"volume", "xdB"},
		{"source"},
		{"code"},
		{"reboot"},
	} {
		if _, err := buildRequest(args); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
	if _, err := buildRequest([]string{"help"}); err != errHelp {
		t.Errorf("expected errHelp, got %v", err)
	}
}
