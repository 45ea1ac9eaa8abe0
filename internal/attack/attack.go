package attack

import "zipcrack/internal/zipcipher"

// Attack completes a single Zi[2,32) candidate into a full cipher state.
//
// An instance owns three 12-entry register windows covering keystream
// positions index..index+11. TryCandidate seeds the Z window at its top
// entry and recursively reconstructs the rest: first the Z values one
// CRC32 inversion at a time, then the Y values through the multiplicative
// fibers, then the X values checked against the plaintext. The windows
// are mutated in place during recursion; an instance is not safe for
// concurrent use, but separate instances over the same Data are.
type Attack struct {
	zList [WindowSize]uint32
	yList [WindowSize]uint32
	xList [WindowSize]uint32
	data  *Data
	index int
}

// NewAttack returns an attack over keystream positions index..index+11.
func NewAttack(data *Data, index int) *Attack {
	return &Attack{data: data, index: index}
}

// TryCandidate seeds the Z window with one Z{i+11}[2,32) candidate and
// reports whether it completes into a state consistent with the
// plaintext. On success the instance holds the full register state at
// window position 7 and Keys may be called.
func (a *Attack) TryCandidate(z11_2_32 uint32) bool {
	a.zList[11] = z11_2_32
	return a.exploreZ(11)
}

// Keys reconstructs the cipher state at byte 0 of the encrypted stream by
// rewinding the recovered state across the known ciphertext prefix. The
// result is equivalent to the password-derived key.
func (a *Attack) Keys() *zipcipher.Keys {
	keys := zipcipher.NewKeys()
	keys.Set(a.xList[7], a.yList[7], a.zList[7])

	// The recovered state sits before ciphertext byte
	// HeaderSize+Offset+index+7, so exactly that many bytes are rewound.
	for i := HeaderSize + a.data.Offset + a.index + 6; i >= 0; i-- {
		keys.UpdateBackward(a.data.Ciphertext[i])
	}
	return keys
}

// exploreZ fills the Z window downward from position i. Each step derives
// Z{i-1}[10,32) by CRC32 inversion, intersects with the keystream filter
// for the candidate Z{i-1}[2,16) values, and pins down two more low bits
// of Z{i}. When the window is complete it switches to the Y recursion.
func (a *Attack) exploreZ(i int) bool {
	if i == 0 {
		return a.seedY()
	}

	zim1_10_32 := zipcipher.Zim1_10_32(a.zList[i])

	for _, zim1_2_16 := range zipcipher.ZPrefixFilter(a.data.Keystream[a.index+i-1], zim1_10_32) {
		a.zList[i-1] = zim1_10_32 | zim1_2_16

		// Find Zi[0,2) from CRC32^-1: the low two bits were unknown until
		// Z{i-1} fixed them.
		zi := a.zList[i] & zipcipher.Mask2_32
		a.zList[i] = zi | (zipcipher.CRC32Inv(zi, 0)^a.zList[i-1])>>8

		// Adjacent Z values pin down Y{i+1}[24,32).
		if i < 11 {
			a.yList[i+1] = zipcipher.Yi24_32(a.zList[i+1], a.zList[i])
		}

		if a.exploreZ(i - 1) {
			return true
		}
	}
	return false
}

// seedY enumerates Y11 candidates once the Z window is complete. The high
// byte Y11[24,32) is already fixed by the Z-list; the middle bits
// Y11[8,24) are guessed outright and the low byte is drawn from the
// fiber-3 preimages filtered by the Y10[24,32) constraint.
func (a *Attack) seedY() bool {
	// prod tracks (Y11[8,32) - 1) * MultInv across the outer loop.
	prod := zipcipher.MultInvByte(zipcipher.MSB(a.yList[11]))<<24 - zipcipher.MultInv

	for y11_8_24 := uint32(0); y11_8_24 < 1<<24; y11_8_24 += 1 << 8 {
		for _, y11_0_8 := range zipcipher.MSBProdFiber3(zipcipher.MSB(a.yList[10]) - zipcipher.MSB(prod)) {
			if prod+zipcipher.MultInvByte(y11_0_8)-(a.yList[10]&zipcipher.Mask24_32) <= zipcipher.MaxDiff0_24 {
				a.yList[11] = uint32(y11_0_8) | y11_8_24 | a.yList[11]&zipcipher.Mask24_32
				if a.exploreY(11) {
					return true
				}
			}
		}
		mi := zipcipher.MultInv
		prod += mi << 8
	}
	return false
}

// exploreY fills the Y window downward from position i, recovering
// LSB(Xi) along the way. Candidates come from the fiber-2 preimages of
// the rewound product's MSB and are filtered against Y{i-1}'s known high
// byte and the Y{i-2}[24,32) bound.
func (a *Attack) exploreY(i int) bool {
	if i == 3 {
		return a.testX()
	}

	fy := (a.yList[i] - 1) * zipcipher.MultInv
	ffy := (fy - 1) * zipcipher.MultInv

	for _, xi0_8 := range zipcipher.MSBProdFiber2(zipcipher.MSB(ffy - (a.yList[i-2] & zipcipher.Mask24_32))) {
		yim1 := fy - uint32(xi0_8)

		if ffy-zipcipher.MultInvByte(xi0_8)-(a.yList[i-2]&zipcipher.Mask24_32) <= zipcipher.MaxDiff0_24 &&
			zipcipher.MSB(yim1) == zipcipher.MSB(a.yList[i-1]) {
			a.yList[i-1] = yim1
			a.xList[i] = uint32(xi0_8)
			if a.exploreY(i - 1) {
				return true
			}
		}
	}
	return false
}

// testX verifies the X window against the plaintext and applies the final
// Y1 filter. On success positions 4..11 of the X window are consistent
// and position 7 holds a fully determined register state.
func (a *Attack) testX() bool {
	// Extend forward from X4: CRC32 fixes all but the low byte, which the
	// Y recursion already recovered.
	for i := 5; i <= 7; i++ {
		a.xList[i] = zipcipher.CRC32(a.xList[i-1], a.data.Plaintext[a.index+i-1])&zipcipher.Mask8_32 |
			uint32(zipcipher.LSB(a.xList[i]))
	}

	// Compare the 4 LSB(Xi) obtained from plaintext with the X window.
	x := a.xList[7]
	for i := 8; i <= 11; i++ {
		x = zipcipher.CRC32(x, a.data.Plaintext[a.index+i-1])
		if zipcipher.LSB(x) != zipcipher.LSB(a.xList[i]) {
			return false
		}
	}

	// Reverse-derive X3.
	x = a.xList[7]
	for i := 6; i >= 3; i-- {
		x = zipcipher.CRC32Inv(x, a.data.Plaintext[a.index+i])
	}

	// Check that X3 fits with Y1[26,32).
	y1_26_32 := zipcipher.Yi24_32(a.zList[1], a.zList[0]) & zipcipher.Mask26_32
	if ((a.yList[3]-1)*zipcipher.MultInv-uint32(zipcipher.LSB(x))-1)*zipcipher.MultInv-y1_26_32 > zipcipher.MaxDiff0_26 {
		return false
	}

	return true
}
