package hostlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Telemetry is the JSON shape published to the MQTT mirror.
type Telemetry struct {
	StationID   string    `json:"station_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
	Sequence    *int      `json:"sequence,omitempty"`
}

// Publisher mirrors records to an MQTT topic. It is optional; the
// logger runs CSV-only when no broker is configured.
type Publisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
	seq    int
}

func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return &Publisher{
		client: mqtt.NewClient(opts),
		topic:  cfg.MQTTTopic,
		logger: logger,
	}
}

// Connect blocks until the broker accepts us or ctx ends.
func (p *Publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			p.client.Disconnect(0)
			return ctx.Err()
		default:
		}
	}
}

// Publish mirrors one record. Humidity is clamped here, as at the CSV
// sink, since brokers downstream validate the physical range.
func (p *Publisher) Publish(rec Record) error {
	p.seq++
	temp := rec.Temperature
	hum := DisplayHumidity(rec.Humidity)
	seq := p.seq

	payload, err := json.Marshal(Telemetry{
		StationID:   rec.Serial,
		Timestamp:   time.Now().UTC(),
		Temperature: &temp,
		Humidity:    &hum,
		Sequence:    &seq,
	})
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt publish timeout on %s", p.topic)
	}
	return token.Error()
}

func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
	p.logger.Info("mqtt publisher disconnected")
}
