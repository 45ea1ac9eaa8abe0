package zipcipher

// crcPoly is the reflected CRC-32 polynomial used by ZIP (same as zlib).
const crcPoly uint32 = 0xedb88320

// crcTab drives the forward byte step, crcInvTab the inverse step.
// crcInvTab is indexed by MSB(crc): the table stores crc<<8 ^ b for the
// unique byte b whose forward step produced that MSB.
var crcTab, crcInvTab = buildCRC32Tabs()

func buildCRC32Tabs() (tab, inv [256]uint32) {
	for b := uint32(0); b < 256; b++ {
		crc := b
		// Compute CRC-32 of the single byte b from the original definition.
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ crcPoly
			} else {
				crc >>= 1
			}
		}
		tab[b] = crc
		inv[MSB(crc)] = crc<<8 ^ b
	}
	return tab, inv
}

// CRC32 returns the CRC-32 byte step: prev updated with byte b.
func CRC32(prev uint32, b byte) uint32 {
	return prev>>8 ^ crcTab[LSB(prev)^b]
}

// CRC32Inv inverts the CRC-32 byte step: given crc and the byte b that was
// fed forward, it returns the previous CRC value.
func CRC32Inv(crc uint32, b byte) uint32 {
	return crc<<8 ^ crcInvTab[MSB(crc)] ^ uint32(b)
}

// Yi24_32 returns Yi[24,32) derived from Zi and Z{i-1} through CRC32Inv.
func Yi24_32(zi, zim1 uint32) uint32 {
	return (CRC32Inv(zi, 0) ^ zim1) << 24
}

// Zim1_10_32 returns Z{i-1}[10,32) derived from Zi[2,32) through CRC32Inv.
func Zim1_10_32(zi2_32 uint32) uint32 {
	return CRC32Inv(zi2_32, 0) & Mask10_32
}
