package hostlog

import (
	"strconv"
	"strings"

	"trinkeycode-go/x/mathx"
	"trinkeycode-go/x/strx"
)

// Record is one measurement line from the board:
//
//	0x<serial>, <elapsed ms>, <degrees C>, <% rH>
//
// Values are stored as printed; humidity is clamped only at the sinks.
type Record struct {
	Serial      string
	TimestampMs int64
	Temperature float64
	Humidity    float64
}

// IsComment reports whether the line is board chatter ('#' prefixed).
func IsComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// ParseRecord parses a record line. Blank lines, comments and anything
// that is not exactly four well-typed fields return false.
func ParseRecord(line string) (Record, bool) {
	if strx.IsBlank(line) || IsComment(line) {
		return Record{}, false
	}
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return Record{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" {
		return Record{}, false
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Record{}, false
	}
	temp, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Record{}, false
	}
	hum, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return Record{}, false
	}
	return Record{
		Serial:      parts[0],
		TimestampMs: ts,
		Temperature: temp,
		Humidity:    hum,
	}, true
}

// DisplayHumidity clamps relative humidity to its physical range for
// presentation. The sensor can report slightly outside [0,100] at the
// rail ends; ParseRecord keeps the raw value.
func DisplayHumidity(rh float64) float64 {
	return mathx.Clamp(rh, 0, 100)
}
