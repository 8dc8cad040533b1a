// Package session implements the host-facing command loop: a
// single-threaded state machine that owns the sensor, the status
// pixel, the watchdog, and the console.
//
// The loop starts in the init phase (sensor probe; absence is fatal),
// then idles in ready accepting 'n' (serial number), 'h' (blocking
// decontamination) and 's' (arm the watchdog and switch to measuring).
// Measuring is terminal: only 'u' (one measurement per command) is
// honoured, and the watchdog is fed only on measurement success, so a
// wedged sensor or host reboots the board.
package session

import (
	"context"
	"image/color"
	"time"

	"trinkeycode-go/bus"
	"trinkeycode-go/console"
	"trinkeycode-go/drivers/sht4x"
	"trinkeycode-go/errcode"
	"trinkeycode-go/types"
	"trinkeycode-go/x/timex"
)

// Timing and cadence.
const (
	defaultWatchdogTimeoutMs = 60000
	defaultDeconDuration     = 30 * time.Minute
	defaultIdlePoll          = 10 * time.Millisecond

	// tokenWindow bounds the wait for the optional interval after 'h'.
	tokenWindow = time.Second

	// deconReportEvery is the default number of successful heater
	// cycles between status lines.
	deconReportEvery = 30
)

// Console messages. The host-side parser treats '#' lines as comments,
// so everything that is not a record or a decon status keeps the
// prefix.
const (
	bannerMsg        = "# Adafruit SHT41"
	notFoundMsg      = "# Couldn't find SHT4x"
	foundMsg         = "# Found SHT4x sensor"
	serialPrefix     = "# Serial number: "
	usageMsg         = "Send 's' to start measurement, 'n' to get serial number, 'h' for decontamination."
	headerRule       = "#=========================#"
	headerCols       = "# sht4SerialNumber, timestamp, temperature (degrees C), humidity (% rH)"
	deconDefaultMsg  = "# Invalid decontamination interval, using default (30 min)..."
	deconAbortMsg    = "Error reading from sensor, abort..."
	deconCompleteMsg = "# Decontamination complete"
	measureFailMsg   = "Error reading from sensor, retrying..."
)

// Telemetry topics. The env values are retained so a late subscriber
// sees the last reading without waiting for the next 'u'.
var (
	TopicState  = bus.T("session", "state")
	TopicRecord = bus.T("telemetry", "record")
	TopicDecon  = bus.T("telemetry", "decon")
	TopicError  = bus.T("telemetry", "error")
	TopicTemp   = bus.T("env", "temperature", "value")
	TopicHum    = bus.T("env", "humidity", "value")
)

// Sensor is the slice of the sht4x driver the session uses.
type Sensor interface {
	ReadSerial() (uint32, error)
	Measure() (sht4x.Sample, error)
	Heat(sht4x.HeaterPulse) (sht4x.Sample, error)
}

// LED drives the status pixel.
type LED interface {
	Set(c color.RGBA)
}

// Watchdog arms once and is fed on every successful measurement.
// Arm returns the granted timeout, which the hardware may cap below
// the request.
type Watchdog interface {
	Arm(timeoutMs uint32) (grantedMs uint32)
	Feed()
}

// Config wires the session's collaborators. Sensor, Console, LED and
// Watchdog are required; Bus and Clock are optional.
type Config struct {
	Sensor   Sensor
	Console  *console.Console
	LED      LED
	Watchdog Watchdog
	Bus      *bus.Connection
	Clock    timex.Clock

	WatchdogTimeoutMs uint32
	DeconDefault      time.Duration
	DeconReportEvery  int
	Heater            sht4x.HeaterPulse
	IdlePoll          time.Duration
}

// Session holds the command-loop state. Not safe for concurrent use;
// exactly one goroutine runs it.
type Session struct {
	sens  Sensor
	cons  *console.Console
	led   LED
	wdog  Watchdog
	conn  *bus.Connection
	clock timex.Clock

	watchdogMs   uint32
	deconDefault time.Duration
	reportEvery  int
	heater       sht4x.HeaterPulse
	idlePoll     time.Duration

	phase  types.SessionPhase
	serial uint32
	origin time.Time // set when measuring starts
	line   []byte    // reusable render buffer
}

func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = timex.Wall{}
	}
	if cfg.WatchdogTimeoutMs == 0 {
		cfg.WatchdogTimeoutMs = defaultWatchdogTimeoutMs
	}
	if cfg.DeconDefault <= 0 {
		cfg.DeconDefault = defaultDeconDuration
	}
	if cfg.DeconReportEvery <= 0 {
		cfg.DeconReportEvery = deconReportEvery
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = defaultIdlePoll
	}
	return &Session{
		sens:         cfg.Sensor,
		cons:         cfg.Console,
		led:          cfg.LED,
		wdog:         cfg.Watchdog,
		conn:         cfg.Bus,
		clock:        cfg.Clock,
		watchdogMs:   cfg.WatchdogTimeoutMs,
		deconDefault: cfg.DeconDefault,
		reportEvery:  cfg.DeconReportEvery,
		heater:       cfg.Heater,
		idlePoll:     cfg.IdlePoll,
		line:         make([]byte, 0, 96),
	}
}

// Phase returns the current phase; the simulator surfaces it in logs.
func (s *Session) Phase() types.SessionPhase { return s.phase }

// Serial returns the probed sensor serial, 0 before init completes.
func (s *Session) Serial() uint32 { return s.serial }

// Run drives the state machine until ctx is cancelled. It returns
// early only when the sensor probe fails; the caller decides how to
// halt.
func (s *Session) Run(ctx context.Context) error {
	if err := s.runInit(); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, ok := s.cons.Poll()
		if !ok {
			s.clock.Sleep(s.idlePoll)
			continue
		}
		switch s.phase {
		case types.PhaseReady:
			s.handleReady(b)
		case types.PhaseMeasuring:
			s.handleMeasuring(b)
		}
	}
}

// runInit probes the sensor. The board is unusable without it, so a
// failed probe prints, parks the phase at halted, and reports up.
func (s *Session) runInit() error {
	s.led.Set(types.ColorInit)
	s.setPhase(types.PhaseInit)
	s.cons.WriteStringLine(bannerMsg)

	sn, err := s.sens.ReadSerial()
	if err != nil {
		s.cons.WriteStringLine(notFoundMsg)
		s.publishError(errcode.SensorNotFound, notFoundMsg)
		s.setPhase(types.PhaseHalted)
		return &errcode.E{C: errcode.SensorNotFound, Op: "session.init", Err: err}
	}
	s.serial = sn

	s.cons.WriteStringLine(foundMsg)
	s.line = append(s.line[:0], serialPrefix...)
	s.line = appendSerialHex(s.line, sn)
	s.cons.WriteLine(s.line)
	s.cons.WriteStringLine(usageMsg)

	s.led.Set(types.ColorReady)
	s.setPhase(types.PhaseReady)
	return nil
}

func (s *Session) handleReady(b byte) {
	switch b {
	case 'n':
		s.line = appendSerialHex(s.line[:0], s.serial)
		s.cons.WriteLine(s.line)
	case 'h':
		s.runDecon()
	case 's':
		s.startMeasuring()
	default:
		s.cons.WriteStringLine(usageMsg)
	}
}

func (s *Session) handleMeasuring(b byte) {
	if b == 'u' {
		s.measureOnce()
	}
	// Everything else is ignored once measuring.
}

// startMeasuring arms the watchdog, prints the CSV preamble, and
// pins the elapsed-time origin. There is no way back to ready.
func (s *Session) startMeasuring() {
	granted := s.wdog.Arm(s.watchdogMs)

	s.line = append(s.line[:0], "Enabled the watchdog with max countdown of "...)
	s.line = appendUint32(s.line, granted)
	s.line = append(s.line, " milliseconds!"...)
	s.cons.WriteLine(s.line)

	s.cons.WriteStringLine(headerRule)
	s.cons.WriteStringLine(headerCols)

	s.origin = s.clock.Now()
	s.setPhase(types.PhaseMeasuring)
}

// measureOnce performs exactly one conversion. Failure reports and
// leaves the watchdog unfed; the host retries with another 'u'.
func (s *Session) measureOnce() {
	sample, err := s.sens.Measure()
	if err != nil {
		s.led.Set(types.ColorError)
		s.cons.WriteStringLine(measureFailMsg)
		s.publishError(codeOf(err), measureFailMsg)
		s.led.Set(types.ColorOff)
		return
	}

	elapsed := s.clock.Now().Sub(s.origin).Milliseconds()

	s.led.Set(types.ColorMeasuring)
	s.line = appendRecord(s.line[:0], s.serial, elapsed, sample)
	s.cons.WriteLine(s.line)
	s.led.Set(types.ColorOff)

	s.wdog.Feed()
	s.publishRecord(elapsed, sample)
}

// ---- telemetry ----

func (s *Session) nowMs() int64 { return s.clock.Now().UnixMilli() }

func (s *Session) setPhase(p types.SessionPhase) {
	s.phase = p
	if s.conn == nil {
		return
	}
	s.conn.Publish(s.conn.NewMessage(TopicState, types.SessionState{
		Phase:  p,
		Serial: s.serial,
		TS:     s.nowMs(),
	}, true))
}

func (s *Session) publishRecord(elapsedMs int64, sample sht4x.Sample) {
	if s.conn == nil {
		return
	}
	temp := types.TemperatureValue{DeciC: int16(sample.DeciCelsius())}
	hum := types.HumidityValue{DeciRH: int16(sample.DeciRelHumidity())}
	s.conn.Publish(s.conn.NewMessage(TopicRecord, types.MeasurementRecord{
		Serial:    s.serial,
		ElapsedMs: elapsedMs,
		Temp:      temp,
		Hum:       hum,
	}, false))
	s.conn.Publish(s.conn.NewMessage(TopicTemp, temp, true))
	s.conn.Publish(s.conn.NewMessage(TopicHum, hum, true))
}

func (s *Session) publishDecon(sample sht4x.Sample, remainingMs int64) {
	if s.conn == nil {
		return
	}
	s.conn.Publish(s.conn.NewMessage(TopicDecon, types.DeconStatus{
		Temp:        types.TemperatureValue{DeciC: int16(sample.DeciCelsius())},
		Hum:         types.HumidityValue{DeciRH: int16(sample.DeciRelHumidity())},
		RemainingMs: remainingMs,
	}, false))
}

func (s *Session) publishError(code errcode.Code, msg string) {
	if s.conn == nil {
		return
	}
	s.conn.Publish(s.conn.NewMessage(TopicError, types.ErrorEvent{
		Code: string(code),
		Msg:  msg,
		TS:   s.nowMs(),
	}, false))
}

// codeOf maps driver errors onto the bus-facing taxonomy.
func codeOf(err error) errcode.Code {
	switch err {
	case nil:
		return errcode.OK
	case sht4x.ErrTimeout:
		return errcode.SensorUnresponsive
	case sht4x.ErrBadCRC:
		return errcode.BadCRC
	}
	return errcode.Error
}
