package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the irdac daemon.
//
// Defaults reproduce the values the front panel firmware was built with, so an
// empty file yields a working Sony/Apple remote setup with the stock MQTT topics.
// Components receive their section by pointer at construction and never mutate it.
type Config struct {
	Network NetworkConfig `yaml:"network"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	IR      IRConfig      `yaml:"ir"`
	Remote  RemoteConfig  `yaml:"remote"`
	Volume  VolumeConfig  `yaml:"volume"`
	Display DisplayConfig `yaml:"display"`
	Source  SourceConfig  `yaml:"source"`
	DAC     DACConfig     `yaml:"dac"`
	MPD     MPDConfig     `yaml:"mpd"`
	IPC     IPCConfig     `yaml:"ipc"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

type NetworkConfig struct {
	// Hostname names the device on MQTT (client id prefix) and mDNS.
	Hostname string `yaml:"hostname"`
}

type MQTTConfig struct {
	Enabled          bool        `yaml:"enabled"`
	Broker           string      `yaml:"broker"`
	Username         string      `yaml:"username,omitempty"`
	Password         string      `yaml:"password,omitempty"`
	ClientID         string      `yaml:"client_id,omitempty"`
	QoS              int         `yaml:"qos"`
	Retain           bool        `yaml:"retain"`
	PublishTimeoutMS int         `yaml:"publish_timeout_ms"`
	Topics           TopicConfig `yaml:"topics"`
}

type TopicConfig struct {
	VolumeSet    string `yaml:"volume_set"`
	VolumeState  string `yaml:"volume_state"`
	DisplaySet   string `yaml:"display_set"`
	SourceSet    string `yaml:"source_set"`
	SourceState  string `yaml:"source_state"`
	MoodeSource  string `yaml:"moode_source"`
	MoodeDetails string `yaml:"moode_details"`
}

type IRConfig struct {
	// Devices are evdev nodes fed by the kernel rc-core receiver.
	Devices []string `yaml:"devices,omitempty"`

	// SerialPort is an optional microcontroller bridge printing decoded frames.
	SerialPort string `yaml:"serial_port,omitempty"`
	SerialBaud int    `yaml:"serial_baud,omitempty"`

	// GPIOPin is an optional demodulated receiver output (e.g. "GPIO17").
	GPIOPin string `yaml:"gpio_pin,omitempty"`

	// KeymapFile overrides the built-in keymap and is reloaded on change.
	KeymapFile string `yaml:"keymap_file,omitempty"`
}

type RemoteConfig struct {
	RepeatWindowMS   int `yaml:"repeat_window_ms"`
	HoldDelayMS      int `yaml:"hold_delay_ms"`
	RepeatIntervalMS int `yaml:"repeat_interval_ms"`
}

type VolumeConfig struct {
	Steps          int     `yaml:"steps"`
	MinDB          float64 `yaml:"min_db"`
	MaxDB          float64 `yaml:"max_db"`
	TwiceLoudSteps int     `yaml:"twice_loud_steps"`
	TwiceLoudDB    float64 `yaml:"twice_loud_db"`
	// Anchor selects which end of the range the curve starts from: "min" or "max".
	Anchor      string `yaml:"anchor"`
	InitialStep int    `yaml:"initial_step"`
}

type DisplayConfig struct {
	ScreenTimeoutMS int        `yaml:"screen_timeout_ms"`
	MaxLineLength   int        `yaml:"max_line_length"`
	MaxLines        int        `yaml:"max_lines"`
	TickMS          int        `yaml:"tick_ms"`
	OpticalText     string     `yaml:"optical_text"`
	CoaxText        string     `yaml:"coax_text"`
	I2SText         string     `yaml:"i2s_text"`
	OLED            OLEDConfig `yaml:"oled"`
}

type OLEDConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bus     string `yaml:"bus,omitempty"` // empty selects the first I2C bus
	Address uint16 `yaml:"address"`
}

type SourceConfig struct {
	Default string `yaml:"default"`
	// SelectPins maps a source name to an output line driven high while that
	// source is active. Unset sources have no select line.
	SelectPins map[string]string `yaml:"select_pins,omitempty"`
}

type DACConfig struct {
	// Backend is "none", "camilladsp" or "pga2311".
	Backend    string           `yaml:"backend"`
	CamillaDSP CamillaDSPConfig `yaml:"camilladsp"`
	SPI        SPIConfig        `yaml:"spi"`
}

type CamillaDSPConfig struct {
	WsURL     string `yaml:"ws_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type SPIConfig struct {
	Port    string `yaml:"port"`
	CSPin   string `yaml:"cs_pin,omitempty"`
	SpeedHz int    `yaml:"speed_hz"`
}

type MPDConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password,omitempty"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Enabled  bool `yaml:"enabled"`
	Port     int  `yaml:"port"`
	Zeroconf bool `yaml:"zeroconf"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Network: NetworkConfig{
			Hostname: defaultHostname,
		},
		MQTT: MQTTConfig{
			Enabled:          true,
			Broker:           "tcp://127.0.0.1:1883",
			QoS:              defaultMQTTQoS,
			Retain:           true,
			PublishTimeoutMS: defaultPublishTimeoutMS,
			Topics: TopicConfig{
				VolumeSet:    defaultTopicVolumeSet,
				VolumeState:  defaultTopicVolumeState,
				DisplaySet:   defaultTopicDisplaySet,
				SourceSet:    defaultTopicSourceSet,
				SourceState:  defaultTopicSourceState,
				MoodeSource:  defaultTopicMoodeSource,
				MoodeDetails: defaultTopicMoodeDetails,
			},
		},
		IR: IRConfig{
			Devices:    []string{"/dev/input/event0"},
			SerialBaud: defaultIRSerialBaud,
		},
		Remote: RemoteConfig{
			RepeatWindowMS:   defaultRepeatWindowMS,
			HoldDelayMS:      defaultHoldDelayMS,
			RepeatIntervalMS: defaultRepeatIntervalMS,
		},
		Volume: VolumeConfig{
			Steps:          defaultVolumeSteps,
			MinDB:          defaultMinDB,
			MaxDB:          defaultMaxDB,
			TwiceLoudSteps: defaultTwiceLoudSteps,
			TwiceLoudDB:    defaultTwiceLoudDB,
			Anchor:         string(AnchorMin),
			InitialStep:    defaultInitialStep,
		},
		Display: DisplayConfig{
			ScreenTimeoutMS: defaultScreenTimeoutMS,
			MaxLineLength:   defaultMaxLineLength,
			MaxLines:        defaultMaxLines,
			TickMS:          defaultDisplayTickMS,
			OpticalText:     defaultDisplayOpticalText,
			CoaxText:        defaultDisplayCoaxText,
			I2SText:         defaultDisplayI2SText,
			OLED: OLEDConfig{
				Address: defaultOLEDAddress,
			},
		},
		Source: SourceConfig{
			Default: "optical",
		},
		DAC: DACConfig{
			Backend: "none",
			CamillaDSP: CamillaDSPConfig{
				WsURL:     "ws://127.0.0.1:1234",
				TimeoutMS: defaultReadTimeoutMS,
			},
			SPI: SPIConfig{
				Port:    "/dev/spidev0.0",
				SpeedHz: defaultSPISpeedHz,
			},
		},
		MPD: MPDConfig{
			Address: "127.0.0.1:6600",
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/irdac.sock",
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
// Unknown fields are rejected so typos surface at startup.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}
	return cfg, nil
}

// FlagOverrides carries command-line overrides. A nil pointer means the flag
// was not set; a non-nil pointer is applied even if it holds a zero value.
type FlagOverrides struct {
	IRDevice   *string
	MQTTBroker *string
	HTTPPort   *int
	DACBackend *string
	LogLevel   *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.IRDevice != nil {
		cfg.IR.Devices = []string{*o.IRDevice}
	}
	if o.MQTTBroker != nil {
		cfg.MQTT.Broker = *o.MQTTBroker
		cfg.MQTT.Enabled = *o.MQTTBroker != ""
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.DACBackend != nil {
		cfg.DAC.Backend = *o.DACBackend
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides have been applied.
func (c *Config) Validate() error {
	if c.Network.Hostname == "" {
		return errors.New("network.hostname must not be empty")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.enabled is true but mqtt.broker is empty")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return errors.New("mqtt.qos must be 0, 1 or 2")
		}
		if c.MQTT.PublishTimeoutMS <= 0 {
			return errors.New("mqtt.publish_timeout_ms must be > 0")
		}
		t := c.MQTT.Topics
		for name, v := range map[string]string{
			"volume_set":   t.VolumeSet,
			"volume_state": t.VolumeState,
			"source_set":   t.SourceSet,
			"source_state": t.SourceState,
		} {
			if v == "" {
				return fmt.Errorf("mqtt.topics.%s must not be empty", name)
			}
		}
	}

	for i, dev := range c.IR.Devices {
		if dev == "" {
			return fmt.Errorf("ir.devices[%d] is empty", i)
		}
	}
	if c.IR.SerialPort != "" && c.IR.SerialBaud <= 0 {
		return errors.New("ir.serial_baud must be > 0")
	}

	if c.Remote.RepeatWindowMS <= 0 {
		return errors.New("remote.repeat_window_ms must be > 0")
	}
	if c.Remote.HoldDelayMS < 0 {
		return errors.New("remote.hold_delay_ms must be >= 0")
	}
	if c.Remote.RepeatIntervalMS <= 0 {
		return errors.New("remote.repeat_interval_ms must be > 0")
	}

	if err := c.Volume.validate(); err != nil {
		return err
	}

	if c.Display.ScreenTimeoutMS <= 0 {
		return errors.New("display.screen_timeout_ms must be > 0")
	}
	if c.Display.MaxLineLength <= 0 {
		return errors.New("display.max_line_length must be > 0")
	}
	if c.Display.MaxLines <= 0 {
		return errors.New("display.max_lines must be > 0")
	}
	if c.Display.TickMS <= 0 || c.Display.TickMS > c.Display.ScreenTimeoutMS {
		return errors.New("display.tick_ms must be between 1 and display.screen_timeout_ms")
	}

	if _, err := ParseSource(c.Source.Default); err != nil {
		return fmt.Errorf("source.default: %w", err)
	}
	for name := range c.Source.SelectPins {
		if _, err := ParseSource(name); err != nil {
			return fmt.Errorf("source.select_pins: %w", err)
		}
	}

	switch c.DAC.Backend {
	case "", "none":
	case "camilladsp":
		if c.DAC.CamillaDSP.WsURL == "" {
			return errors.New("dac.camilladsp.ws_url must not be empty")
		}
		if c.DAC.CamillaDSP.TimeoutMS <= 0 {
			return errors.New("dac.camilladsp.timeout_ms must be > 0")
		}
	case "pga2311":
		if c.DAC.SPI.Port == "" {
			return errors.New("dac.spi.port must not be empty")
		}
		if c.DAC.SPI.SpeedHz <= 0 {
			return errors.New("dac.spi.speed_hz must be > 0")
		}
		if c.Volume.MinDB < pgaMinDB || c.Volume.MaxDB > pgaMaxDB {
			return fmt.Errorf("volume range must lie within [%.1f, %.1f] dB for pga2311", pgaMinDB, pgaMaxDB)
		}
	default:
		return fmt.Errorf("dac.backend must be none, camilladsp or pga2311 (got %q)", c.DAC.Backend)
	}

	if c.MPD.Enabled && c.MPD.Address == "" {
		return errors.New("mpd.enabled is true but mpd.address is empty")
	}

	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		return errors.New("http.port must be between 1 and 65535")
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

func (v VolumeConfig) validate() error {
	if v.Steps <= 0 {
		return errors.New("volume.steps must be > 0")
	}
	if v.MinDB >= v.MaxDB {
		return errors.New("volume.min_db must be < volume.max_db")
	}
	if v.TwiceLoudSteps <= 0 {
		return errors.New("volume.twice_loud_steps must be > 0")
	}
	if v.TwiceLoudDB <= 0 {
		return errors.New("volume.twice_loud_db must be > 0")
	}
	switch VolumeAnchor(strings.ToLower(v.Anchor)) {
	case AnchorMin, AnchorMax, "":
	default:
		return fmt.Errorf("volume.anchor must be %q or %q", AnchorMin, AnchorMax)
	}
	if v.InitialStep < 0 || v.InitialStep > v.Steps {
		return fmt.Errorf("volume.initial_step must be between 0 and %d", v.Steps)
	}
	return nil
}

// RemoteTiming converts the remote section into the debouncer's durations.
func (c *Config) RemoteTiming() DebounceConfig {
	return DebounceConfig{
		Window:         time.Duration(c.Remote.RepeatWindowMS) * time.Millisecond,
		HoldDelay:      time.Duration(c.Remote.HoldDelayMS) * time.Millisecond,
		RepeatInterval: time.Duration(c.Remote.RepeatIntervalMS) * time.Millisecond,
	}
}

// SourceLabels returns the per-source display labels.
func (c *Config) SourceLabels() map[Source]string {
	return map[Source]string{
		SourceOptical: c.Display.OpticalText,
		SourceCoax:    c.Display.CoaxText,
		SourceI2S:     c.Display.I2SText,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
