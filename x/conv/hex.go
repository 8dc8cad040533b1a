package conv

const hexd = "0123456789ABCDEF"

// U32Hex writes 8-digit uppercase hex without 0x, zero-padded.
func U32Hex(buf []byte, n uint32) []byte {
	if len(buf) < 8 {
		return buf[:0]
	}
	i := len(buf)
	for j := 0; j < 8; j++ {
		i--
		buf[i] = hexd[n&0xF]
		n >>= 4
	}
	return buf[i:]
}

// AppendU32Hex0x appends "0x" followed by the 8-digit uppercase hex of n.
// This is the rendering used for sensor identities on the console.
func AppendU32Hex0x(dst []byte, n uint32) []byte {
	dst = append(dst, '0', 'x')
	var buf [8]byte
	return append(dst, U32Hex(buf[:], n)...)
}
