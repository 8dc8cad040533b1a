//go:build rp2040 || rp2350

// Firmware entry for the Adafruit SHT4x Trinkey. The USB CDC port
// carries the operator protocol; everything written to it is mirrored
// to UART1 together with rendered bus telemetry, so a logic probe on
// the debug header sees the whole conversation.
package main

import (
	"context"
	"image/color"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers/ws2812"

	"trinkeycode-go/bus"
	"trinkeycode-go/console"
	"trinkeycode-go/drivers/sht4x"
	"trinkeycode-go/services/config"
	"trinkeycode-go/services/heartbeat"
	"trinkeycode-go/services/session"
	"trinkeycode-go/types"
	"trinkeycode-go/x/fmtx"
	"trinkeycode-go/x/mathx"
	"trinkeycode-go/x/shmring"
)

// Board wiring.
const (
	sensorSDA = machine.GP16
	sensorSCL = machine.GP17
	pixelPin  = machine.GP27

	debugTX   = machine.GP8
	debugRX   = machine.GP9
	debugBaud = 115200
)

// debugRingSize bounds the mirror buffer. Overflow drops bytes rather
// than stalling the command loop.
const debugRingSize = 1024

// pixel adapts the ws2812 strip driver to the session's one-LED view.
type pixel struct {
	dev ws2812.Device
	buf [1]color.RGBA
}

func (p *pixel) Set(c color.RGBA) {
	p.buf[0] = c
	_ = p.dev.WriteColors(p.buf[:])
}

// picoWatchdog arms the hardware watchdog. The RP2040 caps the
// countdown below the session's default request, so Arm reports the
// granted value back.
type picoWatchdog struct{}

func (picoWatchdog) Arm(timeoutMs uint32) uint32 {
	granted := mathx.Min(timeoutMs, uint32(machine.WatchdogMaxTimeout))
	_ = machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: granted})
	_ = machine.Watchdog.Start()
	return granted
}

func (picoWatchdog) Feed() { machine.Watchdog.Update() }

// mirrorPort reads from the USB CDC serial and copies every host-bound
// byte into the debug ring on the way out.
type mirrorPort struct {
	ring *shmring.Ring
}

func (p *mirrorPort) Buffered() int           { return machine.Serial.Buffered() }
func (p *mirrorPort) ReadByte() (byte, error) { return machine.Serial.ReadByte() }

func (p *mirrorPort) Write(b []byte) (int, error) {
	_ = p.ring.TryWriteFrom(b)
	return machine.Serial.Write(b)
}

// ringWriter lets fmtx and the monitor write into the debug ring.
type ringWriter struct {
	ring *shmring.Ring
}

func (w ringWriter) Write(p []byte) (int, error) {
	_ = w.ring.TryWriteFrom(p)
	return len(p), nil
}

func main() {
	// Give the USB host time to enumerate the CDC port before the
	// banner goes out.
	time.Sleep(3 * time.Second)
	ctx := context.Background()

	println("[main] configuring i2c0 …")
	_ = machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       sensorSDA,
		SCL:       sensorSCL,
	})

	println("[main] configuring debug uart1 …")
	_ = uartx.UART1.Configure(uartx.UARTConfig{
		BaudRate: debugBaud,
		TX:       debugTX,
		RX:       debugRX,
	})

	ring := shmring.New(debugRingSize)
	go pumpDebug(ring, uartx.UART1)

	dbg := ringWriter{ring: ring}
	fmtx.DefaultOutput = dbg

	pixelPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	px := &pixel{dev: ws2812.NewWS2812(pixelPin)}

	dev := sht4x.New(machine.I2C0)
	dev.Configure()

	println("[main] bootstrapping bus …")
	b := bus.NewBus(8)
	sessConn := b.NewConnection("session")
	hbConn := b.NewConnection("heartbeat")
	monConn := b.NewConnection("monitor")
	cfgConn := b.NewConnection("config")

	go monitor(monConn, dbg)

	println("[main] publishing embedded config …")
	if err := (&config.Service{Device: "trinkey"}).Publish(cfgConn); err != nil {
		println("[main] config:", err.Error())
	}

	cons := console.New(&mirrorPort{ring: ring}, nil)

	sess := session.New(session.Config{
		Sensor:   &dev,
		Console:  cons,
		LED:      px,
		Watchdog: picoWatchdog{},
		Bus:      sessConn,
	})

	hb := &heartbeat.Service{Phase: sess.Phase}
	_ = hb.Start(ctx, hbConn)

	println("[main] starting session …")
	if err := sess.Run(ctx); err != nil {
		println("[main] session halted:", err.Error())
	}

	// A fatal probe failure lands here. The LED already shows the
	// error state; park so the operator can read the console.
	for {
		time.Sleep(time.Hour)
	}
}

// pumpDebug drains the mirror ring into the hardware UART. The ring's
// edge signal parks the goroutine while there is nothing to move.
func pumpDebug(ring *shmring.Ring, u *uartx.UART) {
	var buf [128]byte
	for {
		n := ring.TryReadInto(buf[:])
		if n == 0 {
			<-ring.Readable()
			continue
		}
		_, _ = u.Write(buf[:n])
	}
}

// monitor renders bus traffic onto the debug stream. It never touches
// the operator console.
func monitor(conn *bus.Connection, w ringWriter) {
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
			_, _ = fmtx.Fprintf(w, "[bus] %s phase=%s\r\n", topicString(m.Topic), string(p.Phase))
		case types.Heartbeat:
			_, _ = fmtx.Fprintf(w, "[bus] %s seq=%d up=%dms\r\n", topicString(m.Topic), p.Seq, p.UptimeMs)
		case types.MeasurementRecord:
			_, _ = fmtx.Fprintf(w, "[bus] %s t=%d rh=%d\r\n", topicString(m.Topic), p.Temp.DeciC, p.Hum.DeciRH)
		case types.DeconStatus:
			_, _ = fmtx.Fprintf(w, "[bus] %s left=%dms\r\n", topicString(m.Topic), p.RemainingMs)
		case types.ErrorEvent:
			_, _ = fmtx.Fprintf(w, "[bus] %s code=%s\r\n", topicString(m.Topic), p.Code)
		default:
			_, _ = fmtx.Fprintf(w, "[bus] %s\r\n", topicString(m.Topic))
		}
	}
}

func topicString(t bus.Topic) string {
	s := ""
	for i := 0; i < t.Len(); i++ {
		if i > 0 {
			s += "/"
		}
		switch v := t.At(i).(type) {
		case string:
			s += v
		default:
			s += fmtx.Sprint(v)
		}
	}
	return s
}
