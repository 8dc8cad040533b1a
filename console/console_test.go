// console/console_test.go
package console

import (
	"errors"
	"testing"
	"time"

	"trinkeycode-go/x/timex"
)

// Compile-time checks.
var (
	_ Port        = (*fakePort)(nil)
	_ timex.Clock = (*fakeClock)(nil)
)

type fakePort struct {
	in  []byte
	out []byte
}

func (p *fakePort) Buffered() int { return len(p.in) }

func (p *fakePort) ReadByte() (byte, error) {
	if len(p.in) == 0 {
		return 0, errors.New("empty")
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.out = append(p.out, b...)
	return len(b), nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(d time.Duration) {
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

func newTestConsole(input string) (*Console, *fakePort, *fakeClock) {
	p := &fakePort{in: []byte(input)}
	clk := &fakeClock{}
	return New(p, clk), p, clk
}

func TestPollNonBlocking(t *testing.T) {
	c, _, _ := newTestConsole("")
	if b, ok := c.Poll(); ok {
		t.Fatalf("Poll on empty port returned %q", b)
	}

	c2, _, _ := newTestConsole("un")
	if b, ok := c2.Poll(); !ok || b != 'u' {
		t.Fatalf("Poll = %q,%v (want 'u')", b, ok)
	}
	if b, ok := c2.Poll(); !ok || b != 'n' {
		t.Fatalf("Poll = %q,%v (want 'n')", b, ok)
	}
	if _, ok := c2.Poll(); ok {
		t.Fatal("Poll after drain should report nothing")
	}
}

func TestReadIntToken(t *testing.T) {
	cases := []struct {
		input string
		want  int
		ok    bool
	}{
		{"120\r", 120, true},
		{"  42\n", 42, true},
		{"-5\r", -5, true},
		{"+7\r", 7, true},
		{"0\r", 0, true},
		{"x9000\r", 9000, true}, // leading garbage skipped
		{"abc\r", 0, false},
		{"", 0, false},
		{"-\r", 0, false},
		{"9999999999\r", 0, false}, // over int32
	}
	for _, tc := range cases {
		c, _, _ := newTestConsole(tc.input)
		got, ok := c.ReadIntToken(time.Second)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ReadIntToken(%q) = %d,%v (want %d,%v)", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestReadIntTokenWaitIsBounded(t *testing.T) {
	c, _, clk := newTestConsole("")
	start := clk.Now()
	if _, ok := c.ReadIntToken(time.Second); ok {
		t.Fatal("token reported on silent port")
	}
	waited := clk.Now().Sub(start)
	if waited < time.Second || waited > time.Second+10*time.Millisecond {
		t.Fatalf("waited %v (want ~1s)", waited)
	}
}

func TestWriteLineAppendsCRLF(t *testing.T) {
	c, p, _ := newTestConsole("")
	c.WriteLine([]byte("0xABCD1234, 500, 8.41, 13.07"))
	c.WriteStringLine("# Decontamination complete")

	want := "0xABCD1234, 500, 8.41, 13.07\r\n# Decontamination complete\r\n"
	if string(p.out) != want {
		t.Fatalf("output = %q\nwant     %q", p.out, want)
	}
}
