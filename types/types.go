// Package types holds the payload vocabulary shared by the firmware
// services, the simulator, and the host tooling. Everything here is a
// plain value type; fixed-point fields keep the device side off the
// float path.
package types

import "image/color"

// ---- Session state (retained) ----

// SessionPhase names the command-loop state.
type SessionPhase string

const (
	PhaseInit      SessionPhase = "init"
	PhaseReady     SessionPhase = "ready"
	PhaseMeasuring SessionPhase = "measuring"
	PhaseHalted    SessionPhase = "halted"
)

// SessionState is published retained on session/state.
type SessionState struct {
	Phase  SessionPhase `json:"phase"`
	Serial uint32       `json:"serial"` // sensor serial, 0 until probed
	TS     int64        `json:"ts_ms"`
}

// ---- Capability kinds ----

type Kind string

const (
	KindTemperature Kind = "temperature"
	KindHumidity    Kind = "humidity"
	KindLED         Kind = "led"
	KindSerial      Kind = "serial"
)

// ---- Measurement payloads ----

type TemperatureValue struct {
	// Tenths of °C (e.g. 231 => 23.1°C).
	DeciC int16 `json:"deci_c"`
}

type HumidityValue struct {
	// Tenths of %RH. Signed: the raw decode line runs from -6%
	// to 119% and is not clamped at this layer.
	DeciRH int16 `json:"deci_rh"`
}

// MeasurementRecord is published on telemetry/record for every
// successful host-commanded measurement.
type MeasurementRecord struct {
	Serial    uint32           `json:"serial"`
	ElapsedMs int64            `json:"elapsed_ms"` // since measuring began
	Temp      TemperatureValue `json:"temp"`
	Hum       HumidityValue    `json:"hum"`
}

// DeconStatus is published on telemetry/decon at each report cycle of
// a decontamination run.
type DeconStatus struct {
	Temp        TemperatureValue `json:"temp"`
	Hum         HumidityValue    `json:"hum"`
	RemainingMs int64            `json:"remaining_ms"`
}

// ---- Service payloads ----

// Heartbeat is published on telemetry/heartbeat.
type Heartbeat struct {
	Seq      uint32       `json:"seq"`
	UptimeMs int64        `json:"uptime_ms"`
	Phase    SessionPhase `json:"phase,omitempty"`
}

// HeartbeatConfig reconfigures the heartbeat service via
// config/heartbeat.
type HeartbeatConfig struct {
	IntervalMs uint32 `json:"interval_ms"` // 0 keeps the current interval
}

// ErrorEvent is published on telemetry/error.
type ErrorEvent struct {
	Code string `json:"code"` // errcode string
	Msg  string `json:"msg,omitempty"`
	TS   int64  `json:"ts_ms"`
}

// Generic replies.
type OKReply struct {
	OK bool `json:"ok"`
}
type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ---- Status LED palette ----

// Palette for the status pixel. Alpha is unused by the pixel and left
// zero so values compare cleanly.
var (
	ColorInit      = color.RGBA{R: 0x00, G: 0x00, B: 0xFF} // waiting for sensor
	ColorReady     = color.RGBA{R: 0x3F, G: 0x3F, B: 0x3F} // idle, accepting commands
	ColorDecon     = color.RGBA{R: 0x00, G: 0xFF, B: 0x00} // heater running
	ColorError     = color.RGBA{R: 0xFF, G: 0xFF, B: 0x00} // last operation failed
	ColorMeasuring = color.RGBA{R: 0xFF, G: 0x00, B: 0xFF} // measurement in flight
	ColorOff       = color.RGBA{}
)
