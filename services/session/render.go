package session

import (
	"trinkeycode-go/drivers/sht4x"
	"trinkeycode-go/x/conv"
	"trinkeycode-go/x/strconvx"
)

// Line rendering. Everything appends into the session's reusable
// buffer; floats print with two decimals, matching what the host
// parser and spreadsheet consumers expect.

// appendSerialHex renders "0x" and eight uppercase hex digits.
func appendSerialHex(dst []byte, sn uint32) []byte {
	return conv.AppendU32Hex0x(dst, sn)
}

func appendUint32(dst []byte, v uint32) []byte {
	return strconvx.AppendUint(dst, uint64(v), 10)
}

// appendRecord renders one measurement record:
//
//	0x<serial>, <elapsed ms>, <°C>, <%RH>
func appendRecord(dst []byte, serial uint32, elapsedMs int64, s sht4x.Sample) []byte {
	dst = conv.AppendU32Hex0x(dst, serial)
	dst = append(dst, ", "...)
	dst = strconvx.AppendInt(dst, elapsedMs, 10)
	dst = append(dst, ", "...)
	dst = strconvx.AppendFloat(dst, float64(s.Celsius()), 'f', 2, 32)
	dst = append(dst, ", "...)
	dst = strconvx.AppendFloat(dst, float64(s.RelHumidity()), 'f', 2, 32)
	return dst
}

// appendDeconStatus renders one heater progress line:
//
//	Decontaminating: T=<°C>°C, RH=<%RH>%, <remaining> ms left
func appendDeconStatus(dst []byte, s sht4x.Sample, remainingMs int64) []byte {
	dst = append(dst, "Decontaminating: T="...)
	dst = strconvx.AppendFloat(dst, float64(s.Celsius()), 'f', 2, 32)
	dst = append(dst, "°C, RH="...)
	dst = strconvx.AppendFloat(dst, float64(s.RelHumidity()), 'f', 2, 32)
	dst = append(dst, "%, "...)
	dst = strconvx.AppendInt(dst, remainingMs, 10)
	dst = append(dst, " ms left"...)
	return dst
}
