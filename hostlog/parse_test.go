// hostlog/parse_test.go
package hostlog

import "testing"

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Record
		ok   bool
	}{
		{"board rendering", "0xEFCF86D7, 500, 8.41, 13.07",
			Record{"0xEFCF86D7", 500, 8.41, 13.07}, true},
		{"out of range survives parsing", "0xF030D05B, 12000, -3.50, 101.22",
			Record{"0xF030D05B", 12000, -3.5, 101.22}, true},
		{"ragged spacing", "0xF030D0CF ,9000 ,  21.50,99.10",
			Record{"0xF030D0CF", 9000, 21.5, 99.1}, true},
		{"comment", "# Decontamination complete", Record{}, false},
		{"indented comment", "   # Found SHT4x sensor", Record{}, false},
		{"blank", "   \r", Record{}, false},
		{"empty", "", Record{}, false},
		{"three fields", "0x1, 2, 3.0", Record{}, false},
		{"five fields", "0x1, 2, 3.0, 4.0, 5.0", Record{}, false},
		{"bad timestamp", "0x1, soon, 3.0, 4.0", Record{}, false},
		{"bad temperature", "0x1, 2, cold, 4.0", Record{}, false},
		{"bad humidity", "0x1, 2, 3.0, damp", Record{}, false},
		{"empty serial", ", 2, 3.0, 4.0", Record{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRecord(tt.line)
			if ok != tt.ok {
				t.Fatalf("ParseRecord(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if got != tt.want {
				t.Fatalf("ParseRecord(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestIsComment(t *testing.T) {
	if !IsComment("# Adafruit SHT41") {
		t.Fatal("banner line not recognised as comment")
	}
	if !IsComment("  # indented") {
		t.Fatal("indented comment not recognised")
	}
	if IsComment("0xEFCF86D7, 500, 8.41, 13.07") {
		t.Fatal("record line misread as comment")
	}
}

func TestDisplayHumidityClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{101.22, 100},
		{-0.5, 0},
		{55.5, 55.5},
		{0, 0},
		{100, 100},
	}
	for _, tt := range tests {
		if got := DisplayHumidity(tt.in); got != tt.want {
			t.Fatalf("DisplayHumidity(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
