// Package config publishes a board's embedded configuration as
// retained bus messages at boot. Entries are typed payloads keyed by
// the service they configure; retained delivery means the consuming
// services can start before or after the publish and still see it.
package config

import (
	"errors"

	"trinkeycode-go/bus"
)

const configPrefix = "config"

// Profile is one board's compiled-in configuration: service key to
// typed payload.
type Profile map[string]any

var ErrUnknownDevice = errors.New("config: no profile for device")

// Lookup resolves a device name to its profile. A main or a test can
// substitute its own table.
var Lookup = func(device string) (Profile, bool) {
	p, ok := profiles[device]
	return p, ok
}

// Service publishes the embedded profile for one device.
type Service struct {
	Device string
}

// Publish pushes every profile entry as a retained message on
// config/<key>. Run once during boot.
func (s *Service) Publish(conn *bus.Connection) error {
	p, ok := Lookup(s.Device)
	if !ok || len(p) == 0 {
		return ErrUnknownDevice
	}
	for k, v := range p {
		conn.Publish(&bus.Message{
			Topic:    bus.T(configPrefix, k),
			Payload:  v,
			Retained: true,
		})
	}
	return nil
}
