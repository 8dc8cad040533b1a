package sht4x

// crc8 implements the sensor's checksum: polynomial 0x31, init 0xFF,
// no reflection, no final XOR. Each 16-bit word on the wire carries
// one of these over its two data bytes.
func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
