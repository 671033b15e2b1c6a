package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.MQTT.Topics.VolumeSet != "tele/esp-dac/volume/set" {
		t.Errorf("expected stock volume set topic, got %q", cfg.MQTT.Topics.VolumeSet)
	}
	if src, _ := ParseSource(cfg.Source.Default); src != SourceOptical {
		t.Errorf("expected default source Optical, got %s", src)
	}
}

func TestParseConfig_OverlaysDefaults(t *testing.T) {
	cfg, err := parseConfig([]byte(`
mqtt:
  broker: tcp://broker.lan:1883
  topics:
    volume_set: home/dac/volume/set
volume:
  initial_step: 25
  anchor: max
dac:
  backend: camilladsp
`))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.MQTT.Broker != "tcp://broker.lan:1883" || cfg.MQTT.Topics.VolumeSet != "home/dac/volume/set" {
		t.Errorf("expected overrides applied, got %+v", cfg.MQTT)
	}
	if cfg.MQTT.Topics.VolumeState != defaultTopicVolumeState {
		t.Errorf("expected untouched topic to keep default, got %q", cfg.MQTT.Topics.VolumeState)
	}
	if cfg.Volume.InitialStep != 25 || cfg.Volume.Steps != 100 {
		t.Errorf("expected initial_step 25 with 100 steps, got %+v", cfg.Volume)
	}
	if cfg.DAC.CamillaDSP.WsURL != "ws://127.0.0.1:1234" {
		t.Errorf("expected default camilladsp url, got %q", cfg.DAC.CamillaDSP.WsURL)
	}
}

func TestParseConfig_RejectsUnknownAndTrailing(t *testing.T) {
	if _, err := parseConfig([]byte("volume:\n  stepz: 10\n")); err == nil {
		t.Error("expected unknown field to be rejected")
	}
	if _, err := parseConfig([]byte("volume:\n  steps: 10\n---\nvolume:\n  steps: 20\n")); err == nil {
		t.Error("expected trailing document to be rejected")
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty hostname":      func(c *Config) { c.Network.Hostname = "" },
		"qos":                 func(c *Config) { c.MQTT.QoS = 3 },
		"empty state topic":   func(c *Config) { c.MQTT.Topics.VolumeState = "" },
		"window":              func(c *Config) { c.Remote.RepeatWindowMS = 0 },
		"steps":               func(c *Config) { c.Volume.Steps = 0 },
		"range":               func(c *Config) { c.Volume.MinDB = 0 },
		"anchor":              func(c *Config) { c.Volume.Anchor = "middle" },
		"initial step":        func(c *Config) { c.Volume.InitialStep = 101 },
		"tick > timeout":      func(c *Config) { c.Display.TickMS = 5000 },
		"default source":      func(c *Config) { c.Source.Default = "phono" },
		"select pin source":   func(c *Config) { c.Source.SelectPins = map[string]string{"aux": "GPIO5"} },
		"backend":             func(c *Config) { c.DAC.Backend = "alsa" },
		"pga range":           func(c *Config) { c.DAC.Backend = "pga2311"; c.Volume.MinDB = -100 },
		"log level":           func(c *Config) { c.Logging.Level = "verbose" },
		"http port":           func(c *Config) { c.HTTP.Port = 70000 },
		"mpd without addr":    func(c *Config) { c.MPD.Enabled = true; c.MPD.Address = "" },
		"serial without baud": func(c *Config) { c.IR.SerialPort = "/dev/ttyUSB0"; c.IR.SerialBaud = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	// MQTT topics only matter when MQTT is on.
	cfg := DefaultConfig()
	cfg.MQTT.Enabled = false
	cfg.MQTT.Topics = TopicConfig{}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected disabled MQTT to skip topic checks, got %v", err)
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	port := 0
	broker := ""
	level := "debug"
	FlagOverrides{HTTPPort: &port, MQTTBroker: &broker, LogLevel: &level}.Apply(&cfg)

	if cfg.HTTP.Port != 0 {
		t.Errorf("expected explicit zero port applied, got %d", cfg.HTTP.Port)
	}
	if cfg.MQTT.Enabled {
		t.Error("expected empty broker to disable MQTT")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug, got %q", cfg.Logging.Level)
	}
	if len(cfg.IR.Devices) != 1 || cfg.IR.Devices[0] != "/dev/input/event0" {
		t.Errorf("expected unset flag to leave devices alone, got %v", cfg.IR.Devices)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irdac.yaml")
	if err := os.WriteFile(path, []byte("network:\n  hostname: living-room-dac\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Network.Hostname != "living-room-dac" {
		t.Errorf("expected hostname living-room-dac, got %q", cfg.Network.Hostname)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Errorf("expected read error, got %v", err)
	}
}
