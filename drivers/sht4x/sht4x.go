// Package sht4x provides a driver for the Sensirion SHT4x family of
// temperature/humidity sensors (SHT40/SHT41/SHT45).
//
// Every operation is a single command write followed by ACK-polled
// reads:
//
//	s, err := d.Measure()     // one conversion at the configured precision
//	sn, err := d.ReadSerial() // 32-bit factory serial
//	s, err := d.Heat(HeaterHigh1s) // heater pulse, returns the post-pulse sample
//
// The sensor NACKs reads while a conversion or heater pulse is in
// progress. The driver issues the command exactly once, sleeps a
// per-command settle time, then polls reads until data arrives or the
// command deadline passes. The deadline is measured from the start of
// the settle, so no call blocks longer than the command's deadline
// plus one poll interval.
//
// NOTE: I2C.Tx MUST NACK-fail reads when the device holds the bus off;
// the poll loop depends on that to detect "not ready".
package sht4x

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"trinkeycode-go/x/timex"
)

// I2C address.
const Address = 0x44

// Errors returned by the driver.
var (
	ErrTimeout = errors.New("sht4x: timeout")
	ErrBadCRC  = errors.New("sht4x: bad crc")
)

// Precision selects the conversion length for Measure.
type Precision uint8

const (
	PrecisionHigh Precision = iota
	PrecisionMedium
	PrecisionLow
)

// HeaterPulse selects heater power and duration for Heat. The sensor
// runs the heater for the full pulse, then performs one high-precision
// conversion.
type HeaterPulse uint8

const (
	HeaterHigh1s HeaterPulse = iota // 200 mW, 1 s
	HeaterHigh100ms
	HeaterMed1s // 110 mW, 1 s
	HeaterMed100ms
	HeaterLow1s // 20 mW, 1 s
	HeaterLow100ms
)

// cmdSpec ties a command byte to its timing budget. settle is the
// minimum conversion time before the first read attempt; deadline
// bounds the whole transaction from the start of the settle.
type cmdSpec struct {
	code     byte
	settle   time.Duration
	deadline time.Duration
}

var measureSpec = [...]cmdSpec{
	PrecisionHigh:   {code: 0xFD, settle: 10 * time.Millisecond, deadline: 100 * time.Millisecond},
	PrecisionMedium: {code: 0xF6, settle: 5 * time.Millisecond, deadline: 100 * time.Millisecond},
	PrecisionLow:    {code: 0xE0, settle: 2 * time.Millisecond, deadline: 100 * time.Millisecond},
}

var heaterSpec = [...]cmdSpec{
	HeaterHigh1s:    {code: 0x39, settle: 800 * time.Millisecond, deadline: 1100 * time.Millisecond},
	HeaterHigh100ms: {code: 0x32, settle: 80 * time.Millisecond, deadline: 200 * time.Millisecond},
	HeaterMed1s:     {code: 0x2F, settle: 800 * time.Millisecond, deadline: 1100 * time.Millisecond},
	HeaterMed100ms:  {code: 0x24, settle: 80 * time.Millisecond, deadline: 200 * time.Millisecond},
	HeaterLow1s:     {code: 0x1E, settle: 800 * time.Millisecond, deadline: 1100 * time.Millisecond},
	HeaterLow100ms:  {code: 0x15, settle: 80 * time.Millisecond, deadline: 200 * time.Millisecond},
}

var (
	serialSpec = cmdSpec{code: 0x89, settle: time.Millisecond, deadline: 10 * time.Millisecond}
	resetSpec  = cmdSpec{code: 0x94, settle: time.Millisecond}
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x44 if zero.
	Address uint16
	// Precision selects the conversion used by Measure. Default high.
	Precision Precision
	// PollInterval spaces the read attempts after the settle time.
	// Default 1 ms.
	PollInterval time.Duration
	// VerifyCRC enables checksum verification on every response word.
	// Off by default.
	VerifyCRC bool
	// Clock supplies time; defaults to the wall clock.
	Clock timex.Clock
}

// Device wraps an I2C connection to an SHT4x device.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg    Config
	clock  timex.Clock
	buf    [6]byte // reuse buffer to avoid allocations
	serial uint32  // last serial read
}

// New creates a new SHT4x connection. The I2C bus must already be
// configured. This function only creates the Device object; it does
// not touch the device.
func New(bus drivers.I2C) Device {
	return Device{
		bus:     bus,
		Address: Address,
	}
}

// Configure applies optional config and fills in defaults. It may be
// called with no cfg; operations on an unconfigured Device call it
// implicitly.
func (d *Device) Configure(cfgs ...Config) {
	c := Config{}
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.Address != 0 {
		d.Address = c.Address
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Millisecond
	}
	if c.Clock == nil {
		c.Clock = timex.Wall{}
	}
	d.cfg = c
	d.clock = c.Clock
}

// transact issues one command and, when resp is non-empty, ACK-polls
// reads until the device answers or the deadline passes. The command
// write is unchecked: a busy sensor NACKs it, and the poll loop
// resolves both outcomes to data or ErrTimeout.
func (d *Device) transact(spec cmdSpec, resp []byte) error {
	if d.clock == nil {
		d.Configure()
	}

	_ = d.bus.Tx(d.Address, []byte{spec.code}, nil)
	start := d.clock.Now()
	d.clock.Sleep(spec.settle)

	if len(resp) == 0 {
		return nil
	}

	deadline := start.Add(spec.deadline)
	for {
		if err := d.bus.Tx(d.Address, nil, resp); err == nil {
			return nil
		}
		if !d.clock.Now().Before(deadline) {
			return ErrTimeout
		}
		d.clock.Sleep(d.cfg.PollInterval)
	}
}

// decodeSample validates (when enabled) and unpacks a 6-byte
// temperature+humidity frame.
func (d *Device) decodeSample() (Sample, error) {
	if d.cfg.VerifyCRC {
		if crc8(d.buf[0:2]) != d.buf[2] || crc8(d.buf[3:5]) != d.buf[5] {
			return Sample{}, ErrBadCRC
		}
	}
	return Sample{
		TempTicks: uint16(d.buf[0])<<8 | uint16(d.buf[1]),
		HumTicks:  uint16(d.buf[3])<<8 | uint16(d.buf[4]),
	}, nil
}

// Measure performs one conversion at the configured precision and
// returns the raw sample. On timeout the sensor state is unknown; the
// caller decides whether to retry or reset.
func (d *Device) Measure() (Sample, error) {
	if err := d.transact(measureSpec[d.cfg.Precision], d.buf[:]); err != nil {
		return Sample{}, err
	}
	return d.decodeSample()
}

// Heat runs one heater pulse and returns the conversion taken at the
// end of it. The call blocks for the full pulse duration.
func (d *Device) Heat(p HeaterPulse) (Sample, error) {
	if err := d.transact(heaterSpec[p], d.buf[:]); err != nil {
		return Sample{}, err
	}
	return d.decodeSample()
}

// ReadSerial reads the 32-bit factory serial number. It doubles as the
// probe at startup: an absent or wedged device times out within the
// command deadline.
func (d *Device) ReadSerial() (uint32, error) {
	if err := d.transact(serialSpec, d.buf[:]); err != nil {
		return 0, err
	}
	if d.cfg.VerifyCRC {
		if crc8(d.buf[0:2]) != d.buf[2] || crc8(d.buf[3:5]) != d.buf[5] {
			return 0, ErrBadCRC
		}
	}
	sn := uint32(d.buf[0])<<24 | uint32(d.buf[1])<<16 | uint32(d.buf[3])<<8 | uint32(d.buf[4])
	d.serial = sn
	return sn, nil
}

// Serial returns the last serial number read by ReadSerial.
func (d *Device) Serial() uint32 { return d.serial }

// Reset issues a soft reset. Give the device ~1ms afterwards before
// using; the settle built into the command covers it.
func (d *Device) Reset() {
	_ = d.transact(resetSpec, nil)
}

// Sample holds one raw conversion. Tick-to-unit conversion follows the
// datasheet lines; values outside the physical range are NOT clamped
// here, presentation layers decide what to do with them.
type Sample struct {
	TempTicks uint16
	HumTicks  uint16
}

// Celsius returns the sample temperature in °C.
func (s Sample) Celsius() float32 {
	return -45 + 175*(float32(s.TempTicks)/65535)
}

// RelHumidity returns the sample humidity in %RH.
func (s Sample) RelHumidity() float32 {
	return -6 + 125*(float32(s.HumTicks)/65535)
}

// Fixed-point variants in tenths of units, for paths that must avoid
// floating point.

// DeciCelsius returns tenths of °C.
func (s Sample) DeciCelsius() int32 {
	return int32(uint32(s.TempTicks)*1750/65535) - 450
}

// DeciRelHumidity returns tenths of %RH.
func (s Sample) DeciRelHumidity() int32 {
	return int32(uint32(s.HumTicks)*1250/65535) - 60
}
