//go:build !(rp2040 || rp2350)

// trinkey-sim runs the firmware command session on the host against a
// software model of the SHT4x. Stdin is the operator console, stdout
// carries the protocol lines, diagnostics go to stderr. The model
// answers with plausible readings and honours the sensor's
// NACK-until-ready bus timing, so the session exercises the same poll
// loops it runs on hardware.
//
//	trinkey-sim              # normal boot, sensor present
//	trinkey-sim -absent      # probe failure path, exits non-zero
//	trinkey-sim -fail-after 3
package main

import (
	"context"
	"errors"
	"flag"
	"image/color"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"tinygo.org/x/drivers"

	"trinkeycode-go/bus"
	"trinkeycode-go/console"
	"trinkeycode-go/drivers/sht4x"
	"trinkeycode-go/errcode"
	"trinkeycode-go/services/config"
	"trinkeycode-go/services/heartbeat"
	"trinkeycode-go/services/session"
	"trinkeycode-go/types"
	"trinkeycode-go/x/conv"
	"trinkeycode-go/x/mathx"
	"trinkeycode-go/x/shmring"
)

var (
	_ drivers.I2C      = (*simSHT4x)(nil)
	_ console.Port     = (*simPort)(nil)
	_ session.LED      = (*logLED)(nil)
	_ session.Watchdog = (*simWatchdog)(nil)
)

// defaultSerial matches one of the deployed boards so the host
// logger's color table recognises the simulator.
const defaultSerial = 0xEFCF86D7

// watchdogCap mirrors the RP2040 hardware limit so the granted-timeout
// echo matches a real board.
const watchdogCap = 8388

func main() {
	absent := flag.Bool("absent", false, "boot with no sensor on the bus")
	failAfter := flag.Int("fail-after", 0, "sensor stops answering after this many conversions (0 = never)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	lvl := slog.LevelInfo
	if *verbose {
		lvl = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	})).With("app", "trinkey-sim")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := &simSHT4x{
		serial:    defaultSerial,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		absent:    *absent,
		failAfter: *failAfter,
	}

	dev := sht4x.New(model)
	dev.Configure(sht4x.Config{VerifyCRC: true})

	in := shmring.New(256)
	go pumpStdin(in)

	b := bus.NewBus(16)
	sessConn := b.NewConnection("session")
	hbConn := b.NewConnection("heartbeat")
	monConn := b.NewConnection("monitor")
	cfgConn := b.NewConnection("config")

	go monitor(monConn, log)

	if err := (&config.Service{Device: "trinkey-sim"}).Publish(cfgConn); err != nil {
		log.Warn("embedded config", "error", err)
	}

	sess := session.New(session.Config{
		Sensor:   &dev,
		Console:  console.New(&simPort{in: in}, nil),
		LED:      &logLED{log: log},
		Watchdog: &simWatchdog{log: log},
		Bus:      sessConn,
	})

	hb := &heartbeat.Service{Phase: sess.Phase}
	_ = hb.Start(ctx, hbConn)

	log.Info("simulator up", "serial", string(conv.AppendU32Hex0x(nil, model.serial)))
	if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("session halted", "code", string(errcode.Of(err)), "err", err)
		os.Exit(1)
	}
	log.Info("simulator stopped")
}

// pumpStdin moves operator input into the console ring. Blocks on the
// ring's space signal if the session falls behind.
func pumpStdin(in *shmring.Ring) {
	buf := make([]byte, 64)
	for {
		n, err := os.Stdin.Read(buf)
		rest := buf[:n]
		for len(rest) > 0 {
			w := in.TryWriteFrom(rest)
			if w == 0 {
				<-in.Writable()
				continue
			}
			rest = rest[w:]
		}
		if err != nil {
			return
		}
	}
}

// monitor logs the bus telemetry plane.
func monitor(conn *bus.Connection, log *slog.Logger) {
	tele := conn.Subscribe(bus.T("telemetry", "#"))
	state := conn.Subscribe(session.TopicState)
	for {
		var m *bus.Message
		select {
		case m = <-tele.Channel():
		case m = <-state.Channel():
		}
		switch p := m.Payload.(type) {
		case types.SessionState:
			log.Info("session state", "phase", string(p.Phase), "serial", p.Serial)
		case types.Heartbeat:
			log.Debug("heartbeat", "seq", p.Seq, "uptime_ms", p.UptimeMs)
		case types.MeasurementRecord:
			log.Info("record", "elapsed_ms", p.ElapsedMs, "deci_c", p.Temp.DeciC, "deci_rh", p.Hum.DeciRH)
		case types.DeconStatus:
			log.Info("decon", "remaining_ms", p.RemainingMs, "deci_c", p.Temp.DeciC)
		case types.ErrorEvent:
			log.Warn("device error", "code", p.Code, "msg", p.Msg)
		}
	}
}

// ---- console port over stdin/stdout ----

var errNoInput = errors.New("sim: no input buffered")

type simPort struct {
	in *shmring.Ring
}

func (p *simPort) Buffered() int { return p.in.Available() }

func (p *simPort) ReadByte() (byte, error) {
	var b [1]byte
	if p.in.TryReadInto(b[:]) == 0 {
		return 0, errNoInput
	}
	return b[0], nil
}

func (p *simPort) Write(b []byte) (int, error) { return os.Stdout.Write(b) }

// ---- status pixel ----

type logLED struct {
	log *slog.Logger
}

func (l *logLED) Set(c color.RGBA) {
	l.log.Debug("led", "color", colorName(c))
}

func colorName(c color.RGBA) string {
	switch c {
	case types.ColorInit:
		return "blue"
	case types.ColorReady:
		return "gray"
	case types.ColorDecon:
		return "green"
	case types.ColorError:
		return "yellow"
	case types.ColorMeasuring:
		return "magenta"
	case types.ColorOff:
		return "off"
	}
	return "?"
}

// ---- watchdog ----

// simWatchdog reproduces the hardware contract: once armed it must be
// fed within the granted window or the process dies, the way the board
// would reboot.
type simWatchdog struct {
	log *slog.Logger

	mu      sync.Mutex
	timeout time.Duration
	last    time.Time
	armed   bool
}

func (w *simWatchdog) Arm(timeoutMs uint32) uint32 {
	granted := mathx.Min(timeoutMs, uint32(watchdogCap))
	w.mu.Lock()
	w.timeout = time.Duration(granted) * time.Millisecond
	w.last = time.Now()
	w.armed = true
	w.mu.Unlock()
	go w.watch()
	w.log.Info("watchdog armed", "granted_ms", granted)
	return granted
}

func (w *simWatchdog) Feed() {
	w.mu.Lock()
	w.last = time.Now()
	w.mu.Unlock()
	w.log.Debug("watchdog fed")
}

func (w *simWatchdog) watch() {
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()
	for range tick.C {
		w.mu.Lock()
		overdue := w.armed && time.Since(w.last) > w.timeout
		w.mu.Unlock()
		if overdue {
			w.log.Error("watchdog bite, board would reset now")
			os.Exit(1)
		}
	}
}

// ---- sensor model ----

// Command codes and conversion times from the SHT4x datasheet. The
// ready times sit under the driver's per-command deadlines.
const (
	cmdMeasureHigh = 0xFD
	cmdMeasureMed  = 0xF6
	cmdMeasureLow  = 0xE0
	cmdSerial      = 0x89
	cmdReset       = 0x94
)

var errNACK = errors.New("sim: i2c nack")

// simSHT4x models the sensor bus protocol: a command write arms a
// conversion, reads NACK until its ready time passes, then a 6-byte
// checksummed frame is served once. Only the session goroutine calls
// Tx, so there is no locking.
type simSHT4x struct {
	serial uint32
	rng    *rand.Rand

	absent    bool
	failAfter int // conversions answered before the sensor wedges

	pending     bool
	readyAt     time.Time
	frame       [6]byte
	conversions int
}

func (s *simSHT4x) Tx(addr uint16, w, r []byte) error {
	if s.absent || addr != sht4x.Address {
		return errNACK
	}
	if len(w) > 0 {
		return s.command(w[0])
	}
	if len(r) > 0 {
		if !s.pending || time.Now().Before(s.readyAt) {
			return errNACK
		}
		copy(r, s.frame[:])
		s.pending = false
	}
	return nil
}

func (s *simSHT4x) command(code byte) error {
	switch code {
	case cmdMeasureHigh:
		s.convert(8*time.Millisecond, false)
	case cmdMeasureMed:
		s.convert(4*time.Millisecond, false)
	case cmdMeasureLow:
		s.convert(2*time.Millisecond, false)
	case 0x39, 0x2F, 0x1E: // 1 s heater pulses
		s.convert(900*time.Millisecond, true)
	case 0x32, 0x24, 0x15: // 100 ms heater pulses
		s.convert(90*time.Millisecond, true)
	case cmdSerial:
		s.arm(time.Millisecond, wordsFrame(uint16(s.serial>>16), uint16(s.serial)))
	case cmdReset:
		s.pending = false
	default:
		return errNACK
	}
	return nil
}

func (s *simSHT4x) convert(ready time.Duration, heated bool) {
	s.conversions++
	if s.failAfter > 0 && s.conversions > s.failAfter {
		// Wedged: the command is accepted but data never arrives.
		s.pending = false
		return
	}
	t := 18 + s.rng.Float64()*10
	rh := 30 + s.rng.Float64()*40
	if heated {
		t += 6 + s.rng.Float64()*6
		rh -= 10 + s.rng.Float64()*10
	}
	s.arm(ready, wordsFrame(tempTicks(t), humTicks(rh)))
}

func (s *simSHT4x) arm(ready time.Duration, f [6]byte) {
	s.pending = true
	s.readyAt = time.Now().Add(ready)
	s.frame = f
}

// wordsFrame packs two big-endian words with their checksums.
func wordsFrame(hi, lo uint16) [6]byte {
	var f [6]byte
	f[0], f[1] = byte(hi>>8), byte(hi)
	f[2] = crc8(f[0:2])
	f[3], f[4] = byte(lo>>8), byte(lo)
	f[5] = crc8(f[3:5])
	return f
}

// Inverse of the datasheet conversion lines.
func tempTicks(t float64) uint16 { return uint16((t + 45) / 175 * 65535) }
func humTicks(rh float64) uint16 { return uint16((rh + 6) / 125 * 65535) }

// crc8 is the sensor's on-chip checksum (poly 0x31, init 0xFF).
func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
