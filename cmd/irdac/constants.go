package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01
	EV_MSC = 0x04

	MSC_SCAN = 0x04

	KEY_VOLUMEDOWN = 114
	KEY_VOLUMEUP   = 115
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Device defaults. These mirror the constants the DAC front panel shipped with.
const (
	defaultHostname = "ESP32-DAC"

	defaultTopicVolumeSet    = "tele/esp-dac/volume/set"
	defaultTopicVolumeState  = "tele/esp-dac/volume"
	defaultTopicDisplaySet   = "tele/esp-dac/display/set"
	defaultTopicSourceSet    = "tele/esp-dac/source/set"
	defaultTopicSourceState  = "tele/esp-dac/source"
	defaultTopicMoodeSource  = "moode/audio/source"
	defaultTopicMoodeDetails = "moode/audio/details"

	defaultScreenTimeoutMS = 3000
	defaultMaxLineLength   = 26
	defaultMaxLines        = 4
	defaultDisplayTickMS   = 100

	defaultDisplayOpticalText = "TV"
	defaultDisplayCoaxText    = "COAX"
	defaultDisplayI2SText     = "MOODE"

	defaultVolumeSteps    = 100
	defaultMinDB          = -60.0
	defaultMaxDB          = 0.0
	defaultTwiceLoudSteps = 20
	defaultTwiceLoudDB    = 10.0
	defaultInitialStep    = 40

	// Sony remotes repeat a frame every ~45ms and send each press at least
	// three times. Apple (NEC) repeat frames arrive every ~108ms.
	defaultRepeatWindowMS   = 200
	defaultHoldDelayMS      = 300
	defaultRepeatIntervalMS = 120

	defaultReadTimeoutMS    = 500
	defaultMQTTQoS          = 1
	defaultPublishTimeoutMS = 5000

	defaultIRSerialBaud = 115200
	defaultOLEDAddress  = 0x3C
	defaultSPISpeedHz   = 1000000
)

// IR codes as decoded by the front panel receiver.
const (
	codeSonyVolumeUp    uint32 = 0x00004BA5
	codeSonyVolumeDown  uint32 = 0x00004BA4
	codeAppleVolumeUp   uint32 = 0xDCC8CD06
	codeAppleVolumeDown uint32 = 0x671A1C02

	maskExact uint32 = 0xFFFFFFFF
	// Apple remotes roll the low half of the code between presses.
	maskAppleStable uint32 = 0xFFFF0000
)

const eventQueueSize = 64

const (
	snapshotTimeout = 1 * time.Second
	dacWriteTimeout = 2 * time.Second
)
