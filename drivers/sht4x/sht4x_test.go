// drivers/sht4x/sht4x_test.go
package sht4x

import (
	"errors"
	"sync"
	"testing"
	"time"

	"tinygo.org/x/drivers"

	"trinkeycode-go/x/timex"
)

// Compile-time checks.
var (
	_ drivers.I2C = (*fakeSHT4x)(nil)
	_ timex.Clock = (*fakeClock)(nil)
)

// fakeClock advances only when slept on, so timing-heavy paths run
// instantly and deterministically.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(d time.Duration) {
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

var errNACK = errors.New("i2c: nack")

// Scripted SHT4x-like fake: accepts one command at a time and NACKs
// reads until the configured attempt count is consumed, the way the
// real part holds off the bus mid-conversion.
type fakeSHT4x struct {
	mu sync.Mutex

	temp, hum uint16
	serial    uint32
	nacks     int  // reads to reject per command before answering
	corrupt   bool // flip a checksum byte in every response

	pending   byte
	nacksLeft int
	writes    []byte
	reads     int
	resets    int
}

func (f *fakeSHT4x) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if addr != Address {
		return errNACK
	}

	switch {
	case len(w) == 1 && len(r) == 0:
		f.writes = append(f.writes, w[0])
		if w[0] == 0x94 {
			f.resets++
			f.pending = 0
			return nil
		}
		f.pending = w[0]
		f.nacksLeft = f.nacks
		return nil

	case len(w) == 0 && len(r) == 6:
		f.reads++
		if f.pending == 0 {
			return errNACK
		}
		if f.nacksLeft > 0 {
			f.nacksLeft--
			return errNACK
		}
		switch f.pending {
		case 0x89:
			putWord(r[0:3], uint16(f.serial>>16))
			putWord(r[3:6], uint16(f.serial))
		default:
			putWord(r[0:3], f.temp)
			putWord(r[3:6], f.hum)
		}
		if f.corrupt {
			r[2] ^= 0xFF
		}
		f.pending = 0
		return nil
	}
	return errNACK
}

func putWord(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
	dst[2] = crc8(dst[0:2])
}

func newTestDevice(f *fakeSHT4x, cfg Config) (*Device, *fakeClock) {
	clk := &fakeClock{}
	cfg.Clock = clk
	d := New(f)
	d.Configure(cfg)
	return &d, clk
}

func TestMeasureDecode(t *testing.T) {
	f := &fakeSHT4x{temp: 20000, hum: 10000}
	d, _ := newTestDevice(f, Config{})

	s, err := d.Measure()
	if err != nil {
		t.Fatalf("measure error: %v", err)
	}
	if s.TempTicks != 20000 || s.HumTicks != 10000 {
		t.Fatalf("raw ticks = %d/%d", s.TempTicks, s.HumTicks)
	}
	if got := s.Celsius(); got < 8.40 || got > 8.42 {
		t.Fatalf("Celsius() = %v (want ~8.41)", got)
	}
	if got := s.RelHumidity(); got < 13.06 || got > 13.08 {
		t.Fatalf("RelHumidity() = %v (want ~13.07)", got)
	}
	if got := s.DeciCelsius(); got != 84 {
		t.Fatalf("DeciCelsius() = %d (want 84)", got)
	}
	if got := s.DeciRelHumidity(); got != 130 {
		t.Fatalf("DeciRelHumidity() = %d (want 130)", got)
	}
}

func TestMeasurePollsUntilReady(t *testing.T) {
	f := &fakeSHT4x{temp: 1, hum: 2, nacks: 5}
	d, _ := newTestDevice(f, Config{})

	if _, err := d.Measure(); err != nil {
		t.Fatalf("measure error: %v", err)
	}
	// The command goes out exactly once; the not-ready phase is
	// absorbed entirely by read polling.
	if len(f.writes) != 1 || f.writes[0] != 0xFD {
		t.Fatalf("writes = %#v (want one 0xFD)", f.writes)
	}
	if f.reads != 6 {
		t.Fatalf("reads = %d (want 6)", f.reads)
	}
}

func TestMeasureTimeoutIsBounded(t *testing.T) {
	f := &fakeSHT4x{nacks: 1 << 30}
	d, clk := newTestDevice(f, Config{})

	start := clk.Now()
	_, err := d.Measure()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v (want ErrTimeout)", err)
	}
	if elapsed := clk.Now().Sub(start); elapsed > 110*time.Millisecond {
		t.Fatalf("measure blocked for %v", elapsed)
	}
	if len(f.writes) != 1 {
		t.Fatalf("writes = %#v (want one)", f.writes)
	}
}

func TestMeasurePrecisionSelectsCommand(t *testing.T) {
	f := &fakeSHT4x{temp: 3, hum: 4}
	d, _ := newTestDevice(f, Config{Precision: PrecisionLow})

	if _, err := d.Measure(); err != nil {
		t.Fatalf("measure error: %v", err)
	}
	if f.writes[0] != 0xE0 {
		t.Fatalf("command = %#x (want 0xE0)", f.writes[0])
	}
}

func TestReadSerial(t *testing.T) {
	f := &fakeSHT4x{serial: 0xEFCF86D7}
	d, _ := newTestDevice(f, Config{})

	sn, err := d.ReadSerial()
	if err != nil {
		t.Fatalf("serial error: %v", err)
	}
	if sn != 0xEFCF86D7 {
		t.Fatalf("serial = %#x (want 0xEFCF86D7)", sn)
	}
	if d.Serial() != sn {
		t.Fatalf("cached serial = %#x", d.Serial())
	}
	if f.writes[0] != 0x89 {
		t.Fatalf("command = %#x (want 0x89)", f.writes[0])
	}
}

func TestVerifyCRCRejectsCorruptFrames(t *testing.T) {
	f := &fakeSHT4x{temp: 500, hum: 600, corrupt: true}
	d, _ := newTestDevice(f, Config{VerifyCRC: true})

	if _, err := d.Measure(); !errors.Is(err, ErrBadCRC) {
		t.Fatalf("err = %v (want ErrBadCRC)", err)
	}

	// Same frames pass when verification is off.
	d2, _ := newTestDevice(f, Config{})
	if _, err := d2.Measure(); err != nil {
		t.Fatalf("unverified measure error: %v", err)
	}
}

func TestHeatCoversPulseDuration(t *testing.T) {
	f := &fakeSHT4x{temp: 30000, hum: 20000}
	d, clk := newTestDevice(f, Config{})

	start := clk.Now()
	s, err := d.Heat(HeaterHigh1s)
	if err != nil {
		t.Fatalf("heat error: %v", err)
	}
	if f.writes[0] != 0x39 {
		t.Fatalf("command = %#x (want 0x39)", f.writes[0])
	}
	if elapsed := clk.Now().Sub(start); elapsed < 800*time.Millisecond {
		t.Fatalf("heat returned after %v (want >= settle)", elapsed)
	}
	if s.TempTicks != 30000 || s.HumTicks != 20000 {
		t.Fatalf("post-pulse ticks = %d/%d", s.TempTicks, s.HumTicks)
	}
}

func TestResetIssuesSoftReset(t *testing.T) {
	f := &fakeSHT4x{}
	d, _ := newTestDevice(f, Config{})

	d.Reset()
	if f.resets != 1 {
		t.Fatalf("resets = %d (want 1)", f.resets)
	}
	if f.reads != 0 {
		t.Fatalf("reset performed %d reads (want 0)", f.reads)
	}
}

func TestCRC8KnownVectors(t *testing.T) {
	if got := crc8([]byte{0xBE, 0xEF}); got != 0x92 {
		t.Fatalf("crc8(0xBEEF) = %#x (want 0x92)", got)
	}
	if got := crc8([]byte{0x00, 0x00}); got != 0x81 {
		t.Fatalf("crc8(0x0000) = %#x (want 0x81)", got)
	}
}
