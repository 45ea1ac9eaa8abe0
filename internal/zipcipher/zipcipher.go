// Package zipcipher implements the legacy ZIP ("ZipCrypto") stream cipher
// primitives and the lookup tables used by the known-plaintext attack.
//
// The cipher state is three 32-bit words (X, Y, Z). All arithmetic is
// wrapping modulo 2^32; Go's uint32 gives that for free.
package zipcipher

// LSB returns the least significant byte of x.
func LSB(x uint32) byte {
	return byte(x)
}

// MSB returns the most significant byte of x.
func MSB(x uint32) byte {
	return byte(x >> 24)
}

// Bit-range masks. MaskA_B keeps bits [A,B) of a 32-bit word.
const (
	Mask0_16  uint32 = 0x0000ffff
	Mask26_32 uint32 = 0xfc000000
	Mask24_32 uint32 = 0xff000000
	Mask10_32 uint32 = 0xfffffc00
	Mask8_32  uint32 = 0xffffff00
	Mask2_32  uint32 = 0xfffffffc
)

// Maximum difference between integers A and B[x,32) where A = B + somebyte:
//
//	A - B[x,32) = B[0,x) + somebyte
//	A - B[x,32) <= mask[0,x) + 0xff
const (
	MaxDiff0_24 uint32 = 0x00ffffff + 0xff
	MaxDiff0_26 uint32 = 0x03ffffff + 0xff
)

// Affine constants of the cipher's Y step. MultInv is the modular inverse
// of Mult so that x*Mult*MultInv == x (mod 2^32).
const (
	Mult    uint32 = 0x08088405
	MultInv uint32 = 0xd94fa8cd
)
