// Package hostlog is the host side of the serial protocol: it parses
// record lines the board prints, appends them to a timestamped CSV
// and optionally mirrors them to MQTT. Configuration comes from the
// environment, with a .env file honoured when present.
package hostlog

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"trinkeycode-go/x/mathx"
	"trinkeycode-go/x/strx"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	// SerialPort empty means autodetect by USB vendor id.
	SerialPort string
	Baud       int

	CSVBase    string
	IntervalMs int

	// MQTTBroker empty disables the MQTT mirror.
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
}

func LoadFromEnv() (Config, error) {
	// Load .env if it exists; real environment wins.
	_ = godotenv.Load()

	appEnv := strx.Coalesce(strings.TrimSpace(os.Getenv("APP_ENV")), "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(strx.Coalesce(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "info"))
	if err != nil {
		return Config{}, err
	}

	baudStr := strx.Coalesce(strings.TrimSpace(os.Getenv("BAUD_RATE")), "115200")
	baud, err := strconv.Atoi(baudStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BAUD_RATE %q: %w", baudStr, err)
	}

	intervalStr := strx.Coalesce(strings.TrimSpace(os.Getenv("READ_INTERVAL_MS")), "1000")
	interval, err := strconv.Atoi(intervalStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid READ_INTERVAL_MS %q: %w", intervalStr, err)
	}
	// Below 100 ms the board spends more time printing than measuring.
	interval = mathx.Max(interval, 100)

	return Config{
		AppEnv:       appEnv,
		LogLevel:     level,
		SerialPort:   strings.TrimSpace(os.Getenv("SERIAL_PORT")),
		Baud:         baud,
		CSVBase:      strx.Coalesce(strings.TrimSpace(os.Getenv("CSV_BASE")), "sensor_readings"),
		IntervalMs:   interval,
		MQTTBroker:   strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTTopic:    strx.Coalesce(strings.TrimSpace(os.Getenv("MQTT_TOPIC")), "trinkey/telemetry"),
		MQTTClientID: strx.Coalesce(strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID")), "trinkey-logger"),
		MQTTUsername: os.Getenv("MQTT_USERNAME"),
		MQTTPassword: os.Getenv("MQTT_PASSWORD"),
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
