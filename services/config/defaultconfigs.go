package config

import "trinkeycode-go/types"

// Per-board profiles. The Trinkey has no filesystem, so defaults ship
// in flash; the simulator reuses the table for parity with hardware.
var profiles = map[string]Profile{
	"trinkey": {
		"heartbeat": types.HeartbeatConfig{IntervalMs: 2000},
	},
	"trinkey-sim": {
		"heartbeat": types.HeartbeatConfig{IntervalMs: 2000},
	},
}
