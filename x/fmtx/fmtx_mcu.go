//go:build rp2040 || rp2350

package fmtx

import "io"

// DefaultOutput is used by Print/Printf on MCU builds.
// Set this from your platform bootstrap (e.g. a UART writer).
var DefaultOutput io.Writer = discard{}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// --- Public API (signatures match fmt) ---

func Sprintf(format string, a ...any) string { return sprintf(format, a...) }

func Printf(format string, a ...any) (int, error) {
	return Fprint(DefaultOutput, sprintf(format, a...))
}

func Fprintf(w io.Writer, format string, a ...any) (int, error) {
	return Fprint(w, sprintf(format, a...))
}

func Errorf(format string, a ...any) error {
	return &stringError{sprintf(format, a...)}
}

func Sprint(a ...any) string { return sprint(a...) }

func Fprint(w io.Writer, a ...any) (int, error) {
	return w.Write([]byte(sprint(a...)))
}

func Print(a ...any) (int, error) { return Fprint(DefaultOutput, a...) }
