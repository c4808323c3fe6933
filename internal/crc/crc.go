package crc

// CRC16 CCITT (polynomial 0x1021), initial value is the zero value
type CRC16 uint16

// Single updates the crc with one byte
func (crc *CRC16) Single(chr byte) {
	c := uint16(*crc) ^ uint16(chr)<<8
	for i := 0; i < 8; i++ {
		if c&0x8000 != 0 {
			c = c<<1 ^ 0x1021
		} else {
			c <<= 1
		}
	}
	*crc = CRC16(c)
}

// Block updates the crc with a slice of bytes
func (crc *CRC16) Block(data []byte) {
	for _, b := range data {
		crc.Single(b)
	}
}
