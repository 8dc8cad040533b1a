package session

import (
	"time"

	"trinkeycode-go/errcode"
	"trinkeycode-go/types"
	"trinkeycode-go/x/mathx"
	"trinkeycode-go/x/strconvx"
)

// runDecon drives a decontamination bake: repeated heater pulses until
// the requested duration elapses. The call blocks; console input sent
// meanwhile stays buffered and is handled after return.
//
// An optional interval in milliseconds may follow the 'h' command.
// Absent, zero, negative or malformed input falls back to the default
// with a notice. A sensor failure aborts the run with no further bus
// traffic and no completion line.
func (s *Session) runDecon() {
	ms, ok := s.cons.ReadIntToken(tokenWindow)
	duration := time.Duration(ms) * time.Millisecond
	if !ok || ms <= 0 {
		s.cons.WriteStringLine(deconDefaultMsg)
		s.publishError(errcode.InvalidInput, deconDefaultMsg)
		duration = s.deconDefault
	}

	s.line = append(s.line[:0], "# Starting "...)
	s.line = strconvx.AppendInt(s.line, int64(duration/time.Millisecond), 10)
	s.line = append(s.line, " ms decontamination heater..."...)
	s.cons.WriteLine(s.line)

	s.led.Set(types.ColorDecon)

	deadline := s.clock.Now().Add(duration)
	cycles := 0
	aborted := false

	for s.clock.Now().Before(deadline) {
		sample, err := s.sens.Heat(s.heater)
		if err != nil {
			aborted = true
			s.led.Set(types.ColorError)
			s.cons.WriteStringLine(deconAbortMsg)
			s.publishError(errcode.DeconAborted, deconAbortMsg)
			break
		}

		cycles++
		if cycles%s.reportEvery == 0 {
			remaining := mathx.Max(deadline.Sub(s.clock.Now()).Milliseconds(), 0)
			s.line = appendDeconStatus(s.line[:0], sample, remaining)
			s.cons.WriteLine(s.line)
			s.publishDecon(sample, remaining)
		}
	}

	if !aborted {
		s.cons.WriteStringLine(deconCompleteMsg)
	}
	s.cons.WriteStringLine(usageMsg)
	s.led.Set(types.ColorReady)
}
