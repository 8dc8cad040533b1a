// Package console wraps the host-facing serial port with the small
// surface the command loop needs: non-blocking single-byte polling, a
// bounded wait for an optional numeric token, and CRLF line output.
package console

import (
	"time"

	"trinkeycode-go/x/strconvx"
	"trinkeycode-go/x/timex"
)

// Port is the subset of machine.Serial the console uses. Any buffered
// byte stream satisfies it, which is what the simulator and the tests
// substitute.
type Port interface {
	Buffered() int
	ReadByte() (byte, error)
	Write(p []byte) (n int, err error)
}

// tokenPollInterval spaces input polls while waiting for a token.
const tokenPollInterval = time.Millisecond

var crlf = []byte("\r\n")

// Console is a thin, stateless view over a Port. Methods never block
// except ReadIntToken, which is bounded by its window.
type Console struct {
	port  Port
	clock timex.Clock
}

func New(port Port, clock timex.Clock) *Console {
	if clock == nil {
		clock = timex.Wall{}
	}
	return &Console{port: port, clock: clock}
}

// Poll returns one pending input byte without blocking.
func (c *Console) Poll() (byte, bool) {
	if c.port.Buffered() == 0 {
		return 0, false
	}
	b, err := c.port.ReadByte()
	if err != nil {
		return 0, false
	}
	return b, true
}

// ReadIntToken collects an optional signed decimal token, waiting up
// to window for it to arrive. Leading whitespace and other non-numeric
// bytes are skipped; the first non-digit after the number begins
// terminates it. Reports false when no valid number arrived before the
// deadline.
func (c *Console) ReadIntToken(window time.Duration) (int, bool) {
	deadline := c.clock.Now().Add(window)
	var tok [12]byte
	n := 0
	started := false

scan:
	for {
		b, ok := c.Poll()
		if !ok {
			if !c.clock.Now().Before(deadline) {
				break
			}
			c.clock.Sleep(tokenPollInterval)
			continue
		}
		switch {
		case b >= '0' && b <= '9':
			started = true
			if n < len(tok) {
				tok[n] = b
				n++
			}
		case !started && (b == '-' || b == '+'):
			started = true
			tok[n] = b
			n++
		case !started:
			// garbage before the token; keep scanning
		default:
			break scan
		}
	}

	if n == 0 {
		return 0, false
	}
	v, err := strconvx.ParseInt(string(tok[:n]), 10, 32)
	if err != nil {
		return 0, false
	}
	return int(v), true
}

// Write sends raw bytes.
func (c *Console) Write(p []byte) {
	_, _ = c.port.Write(p)
}

// WriteLine sends p followed by CRLF.
func (c *Console) WriteLine(p []byte) {
	_, _ = c.port.Write(p)
	_, _ = c.port.Write(crlf)
}

// WriteStringLine sends s followed by CRLF.
func (c *Console) WriteStringLine(s string) {
	c.WriteLine([]byte(s))
}
