//go:build !(rp2040 || rp2350)

// trinkey-logger drives one SHT4x Trinkey over USB serial and appends
// its readings to a timestamped CSV file, optionally mirroring each
// record to MQTT. Configuration comes from the environment (see
// hostlog.LoadFromEnv); with no SERIAL_PORT set the first Adafruit
// device on the bus is used.
package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"trinkeycode-go/hostlog"
)

// adafruitVID is the USB vendor id shared by all Trinkey boards.
const adafruitVID = "239A"

// readTimeout is the port's low-level read slice. Line deadlines are
// layered on top of it in lineReader.
const readTimeout = 100 * time.Millisecond

func main() {
	cfg, err := hostlog.LoadFromEnv()
	if err != nil {
		slog.Error("bad configuration", "error", err)
		os.Exit(1)
	}
	log := hostlog.NewLogger(cfg, "trinkey-logger")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := cfg.SerialPort
	if name == "" {
		name, err = findTrinkeyPort(log)
		if err != nil {
			log.Error("no device", "error", err)
			os.Exit(1)
		}
	}

	port, err := serial.Open(name, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		log.Error("open port", "port", name, "error", err)
		os.Exit(1)
	}
	defer port.Close()
	if err := port.SetReadTimeout(readTimeout); err != nil {
		log.Error("set read timeout", "error", err)
		os.Exit(1)
	}
	log.Info("port open", "port", name, "baud", cfg.Baud)

	r := &lineReader{port: port}

	// The boot banner may still be in flight; give it a moment and
	// log whatever arrives.
	drain(r, log, 300*time.Millisecond, "banner")

	serialID, err := requestSerialID(r, port)
	if err != nil {
		log.Error("read serial number", "error", err)
		os.Exit(1)
	}
	log.Info("device identified", "serial", serialID, "color", hostlog.ColorFor(serialID))

	path := hostlog.Filename(cfg.CSVBase, time.Now())
	sink, err := hostlog.NewCSVSink(path, hostlog.Header(serialID))
	if err != nil {
		log.Error("create csv", "path", path, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn("close csv", "error", err)
		}
	}()

	var pub *hostlog.Publisher
	if cfg.MQTTBroker != "" {
		pub = hostlog.NewPublisher(cfg, log)
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := pub.Connect(connectCtx)
		cancel()
		if err != nil {
			log.Warn("mqtt unavailable, logging csv only", "error", err)
			pub = nil
		} else {
			defer pub.Disconnect()
		}
	}

	// Arm the measurement session. The watchdog notice and the column
	// header come back as comment lines.
	if _, err := port.Write([]byte{'s'}); err != nil {
		log.Error("start session", "error", err)
		os.Exit(1)
	}
	drain(r, log, 300*time.Millisecond, "session start")

	log.Info("logging", "path", path, "interval_ms", cfg.IntervalMs)
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping")
			return
		case <-tick.C:
			if err := pollOnce(r, port, sink, pub, log); err != nil {
				log.Error("port lost", "error", err)
				os.Exit(1)
			}
		}
	}
}

// pollOnce requests one measurement and stores the record. A tick with
// no record (sensor retrying, malformed line) is logged and skipped;
// only transport errors are returned.
func pollOnce(r *lineReader, port serial.Port, sink *hostlog.CSVSink, pub *hostlog.Publisher, log *slog.Logger) error {
	if _, err := port.Write([]byte{'u'}); err != nil {
		return err
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		line, ok, err := r.next(deadline)
		if err != nil {
			return err
		}
		if !ok {
			log.Warn("no record this tick")
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if hostlog.IsComment(line) {
			log.Debug("comment line", "line", line)
			continue
		}
		rec, ok := hostlog.ParseRecord(line)
		if !ok {
			log.Warn("malformed line", "line", line)
			continue
		}
		if err := sink.Append(rec); err != nil {
			return err
		}
		if pub != nil {
			if err := pub.Publish(rec); err != nil {
				log.Warn("mqtt publish", "error", err)
			}
		}
		log.Info("logged",
			"ts_ms", rec.TimestampMs,
			"temp_c", rec.Temperature,
			"hum_pct", hostlog.DisplayHumidity(rec.Humidity))
		return nil
	}
}

// requestSerialID sends 'n' and returns the bare identity line the
// board answers with (e.g. "0xEFCF86D7").
func requestSerialID(r *lineReader, port serial.Port) (string, error) {
	if _, err := port.Write([]byte{'n'}); err != nil {
		return "", err
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		line, ok, err := r.next(deadline)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errors.New("device did not answer 'n'")
		}
		line = strings.TrimSpace(line)
		if line == "" || hostlog.IsComment(line) {
			continue
		}
		return line, nil
	}
}

// drain logs every line arriving inside the window. Used for the boot
// banner and the session-start chatter, which the operator may want to
// see but the logger does not act on.
func drain(r *lineReader, log *slog.Logger, window time.Duration, tag string) {
	deadline := time.Now().Add(window)
	for {
		line, ok, err := r.next(deadline)
		if err != nil || !ok {
			return
		}
		if strings.TrimSpace(line) != "" {
			log.Debug("device says", "during", tag, "line", line)
		}
	}
}

// findTrinkeyPort returns the first USB serial device with the
// Adafruit vendor id.
func findTrinkeyPort(log *slog.Logger) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, adafruitVID) {
			log.Info("found device", "port", p.Name, "vid", p.VID, "pid", p.PID)
			return p.Name, nil
		}
	}
	return "", errors.New("no usb serial device with the adafruit vendor id")
}

// lineReader assembles lines from a port whose Read returns n=0 with
// no error on timeout. Deadlines are enforced here, one line at a
// time; leftover bytes carry over between calls.
type lineReader struct {
	port serial.Port
	buf  []byte
	rbuf [256]byte
}

// next returns the next complete line, stripped of its EOL. ok is
// false when the deadline passed with no full line available.
func (r *lineReader) next(deadline time.Time) (string, bool, error) {
	for {
		if i := bytes.IndexByte(r.buf, '\n'); i >= 0 {
			line := strings.TrimRight(string(r.buf[:i]), "\r")
			r.buf = append(r.buf[:0], r.buf[i+1:]...)
			return line, true, nil
		}
		if !time.Now().Before(deadline) {
			return "", false, nil
		}
		n, err := r.port.Read(r.rbuf[:])
		if err != nil {
			return "", false, err
		}
		r.buf = append(r.buf, r.rbuf[:n]...)
	}
}
