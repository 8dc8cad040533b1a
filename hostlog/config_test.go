// hostlog/config_test.go
package hostlog

import (
	"log/slog"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "LOG_LEVEL", "SERIAL_PORT", "BAUD_RATE",
		"CSV_BASE", "READ_INTERVAL_MS",
		"MQTT_BROKER", "MQTT_TOPIC", "MQTT_CLIENT_ID",
		"MQTT_USERNAME", "MQTT_PASSWORD",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.Baud != 115200 {
		t.Errorf("Baud = %d, want 115200", got.Baud)
	}
	if got.IntervalMs != 1000 {
		t.Errorf("IntervalMs = %d, want 1000", got.IntervalMs)
	}
	if got.CSVBase != "sensor_readings" {
		t.Errorf("CSVBase = %q, want %q", got.CSVBase, "sensor_readings")
	}
	if got.SerialPort != "" {
		t.Errorf("SerialPort = %q, want autodetect (empty)", got.SerialPort)
	}
	if got.MQTTBroker != "" {
		t.Errorf("MQTTBroker = %q, want disabled (empty)", got.MQTTBroker)
	}
	if got.MQTTTopic != "trinkey/telemetry" {
		t.Errorf("MQTTTopic = %q, want %q", got.MQTTTopic, "trinkey/telemetry")
	}
	if got.MQTTClientID != "trinkey-logger" {
		t.Errorf("MQTTClientID = %q, want %q", got.MQTTClientID, "trinkey-logger")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SERIAL_PORT", "/dev/ttyACM0")
	t.Setenv("BAUD_RATE", "9600")
	t.Setenv("CSV_BASE", "lab_readings")
	t.Setenv("READ_INTERVAL_MS", "2500")
	t.Setenv("MQTT_BROKER", "tcp://broker.local:1883")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.AppEnv != "prod" || got.LogLevel != slog.LevelDebug {
		t.Errorf("AppEnv/LogLevel = %q/%v", got.AppEnv, got.LogLevel)
	}
	if got.SerialPort != "/dev/ttyACM0" || got.Baud != 9600 {
		t.Errorf("SerialPort/Baud = %q/%d", got.SerialPort, got.Baud)
	}
	if got.CSVBase != "lab_readings" || got.IntervalMs != 2500 {
		t.Errorf("CSVBase/IntervalMs = %q/%d", got.CSVBase, got.IntervalMs)
	}
	if got.MQTTBroker != "tcp://broker.local:1883" {
		t.Errorf("MQTTBroker = %q", got.MQTTBroker)
	}
}

func TestLoadFromEnvIntervalFloor(t *testing.T) {
	clearEnv(t)
	t.Setenv("READ_INTERVAL_MS", "10")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.IntervalMs != 100 {
		t.Errorf("IntervalMs = %d, want floor 100", got.IntervalMs)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad app env", "APP_ENV", "qa"},
		{"bad log level", "LOG_LEVEL", "loud"},
		{"bad baud", "BAUD_RATE", "fast"},
		{"bad interval", "READ_INTERVAL_MS", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil for %s=%q", tt.key, tt.value)
			}
		})
	}
}
