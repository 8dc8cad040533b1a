//go:build rp2040 || rp2350

package strconvx

// Allocation-aware helpers with strconv-compatible signatures.
// Formatting is append-first so hot paths can build console lines into a
// reused buffer. Supported bases: 2..36 for integer Format*/Parse*.
// Float support covers plain decimal forms with a fixed precision; it is
// adequate for console rendering, not IEEE-exact.

func Itoa(i int) string { return FormatInt(int64(i), 10) }

func Atoi(s string) (int, error) {
	v, err := ParseInt(s, 10, 0)
	return int(v), err
}

func FormatInt(i int64, base int) string   { return string(AppendInt(nil, i, base)) }
func FormatUint(u uint64, base int) string { return string(AppendUint(nil, u, base)) }

func AppendInt(dst []byte, i int64, base int) []byte {
	if i < 0 {
		dst = append(dst, '-')
		return AppendUint(dst, uint64(-i), base)
	}
	return AppendUint(dst, uint64(i), base)
}

func AppendUint(dst []byte, u uint64, base int) []byte {
	if base < 2 || base > 36 {
		base = 10
	}
	if u == 0 {
		return append(dst, '0')
	}
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	var buf [64]byte
	i := len(buf)
	b := uint64(base)
	for u > 0 {
		i--
		buf[i] = digits[u%b]
		u /= b
	}
	return append(dst, buf[i:]...)
}

type parseError struct{}

func (parseError) Error() string { return "invalid syntax" }

// bitSize: 0,8,16,32,64 like strconv. 0 => int size; mapped to 64 here.
func ParseInt(s string, base, bitSize int) (int64, error) {
	// Strip sign first.
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	// Auto-detect base on the unsigned part if requested.
	if base == 0 {
		base = detectBase(&s)
	}

	// Parse as unsigned, then apply sign with range checks.
	u, err := ParseUint(s, base, 64)
	if err != nil {
		return 0, err
	}
	if bitSize == 0 {
		bitSize = 64
	}
	cutoff := uint64(1) << uint(bitSize-1)
	if neg {
		if u > cutoff {
			return 0, parseError{}
		}
		return -int64(u), nil
	}
	if u >= cutoff {
		return 0, parseError{}
	}
	return int64(u), nil
}

func ParseUint(s string, base, bitSize int) (uint64, error) {
	if base == 0 {
		base = detectBase(&s)
	}
	if base < 2 || base > 36 || len(s) == 0 {
		return 0, parseError{}
	}
	b := uint64(base)
	cutoff := (^uint64(0)) / b
	var v uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		var d byte
		switch {
		case '0' <= c && c <= '9':
			d = c - '0'
		case 'a' <= c && c <= 'z':
			d = c - 'a' + 10
		case 'A' <= c && c <= 'Z':
			d = c - 'A' + 10
		default:
			return 0, parseError{}
		}
		if uint64(d) >= b {
			return 0, parseError{}
		}
		if v > cutoff {
			return 0, parseError{}
		}
		v *= b
		if v+uint64(d) < v {
			return 0, parseError{}
		}
		v += uint64(d)
	}
	switch bitSize {
	case 0, 64:
		return v, nil
	case 8, 16, 32:
		if v >= 1<<uint(bitSize) {
			return 0, parseError{}
		}
		return v, nil
	default:
		return v, nil
	}
}

func detectBase(ps *string) int {
	s := *ps
	if len(s) >= 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			*ps = s[2:]
			return 16
		case 'b', 'B':
			*ps = s[2:]
			return 2
		case 'o', 'O':
			*ps = s[2:]
			return 8
		}
		// Legacy octal: a bare leading zero before digits.
		if s[1] >= '0' && s[1] <= '9' {
			*ps = s[1:]
			return 8
		}
	}
	return 10
}

func FormatFloat(f float64, fmt byte, prec, bitSize int) string {
	return string(AppendFloat(nil, f, fmt, prec, bitSize))
}

// AppendFloat supports the 'f' form only; other verbs fall back to it.
// No infinities or NaN.
func AppendFloat(dst []byte, f float64, fmt byte, prec, _ int) []byte {
	if prec < 0 {
		prec = 6
	}
	if f < 0 {
		dst = append(dst, '-')
		f = -f
	}
	intp := uint64(f)
	if prec == 0 {
		return AppendUint(dst, intp, 10)
	}
	pow := 1.0
	for i := 0; i < prec; i++ {
		pow *= 10
	}
	fracN := uint64((f-float64(intp))*pow + 0.5)
	if fracN >= uint64(pow) {
		// Rounding carried into the integer part.
		intp++
		fracN -= uint64(pow)
	}
	dst = AppendUint(dst, intp, 10)
	dst = append(dst, '.')
	digits := 1
	for v := fracN; v >= 10; v /= 10 {
		digits++
	}
	for i := digits; i < prec; i++ {
		dst = append(dst, '0')
	}
	return AppendUint(dst, fracN, 10)
}

func ParseFloat(s string, _ int) (float64, error) {
	if len(s) == 0 {
		return 0, parseError{}
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	var intPart uint64
	var i, nd int
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		intPart = intPart*10 + uint64(s[i]-'0')
		i++
		nd++
	}
	var frac float64
	if i < len(s) && s[i] == '.' {
		i++
		scale := 1.0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			frac = frac*10 + float64(s[i]-'0')
			scale *= 10
			i++
			nd++
		}
		frac = frac / scale
	}
	if i != len(s) || nd == 0 {
		return 0, parseError{}
	}
	v := float64(intPart) + frac
	if neg {
		v = -v
	}
	return v, nil
}
