package zipcipher

// The keystream byte k = LSB(((Z|2)*(Z|3)) >> 8) depends only on bits
// Z[2,16), so a 2^14-entry table covers the whole forward map. Each of the
// 256 possible output bytes has exactly 64 preimages Z[2,16); they are
// stored sorted in keystreamInvTab. Because the preimages are sorted, the
// entries sharing the same high bits Z[10,16) form a contiguous run, so
// the (k, Z[10,16)) filter view is a pair of offsets into the inverse
// table rather than a third copy of the data.
var keystreamTab, keystreamInvTab, keystreamInvOff = buildKeystreamTabs()

func buildKeystreamTabs() (tab [1 << 14]byte, inv [256][64]uint32, off [256][65]uint8) {
	var next [256]int
	for z2_16 := uint32(0); z2_16 < 1<<16; z2_16 += 4 {
		k := LSB((z2_16 | 2) * (z2_16 | 3) >> 8)
		tab[z2_16>>2] = k
		inv[k][next[k]] = z2_16
		next[k]++
	}

	// Bucket boundaries: off[k][b] is the index in inv[k] of the first
	// entry with Z[10,16) == b, off[k][64] is always 64.
	for k := 0; k < 256; k++ {
		i := 0
		for b := 0; b <= 64; b++ {
			for i < 64 && int(inv[k][i]>>10) < b {
				i++
			}
			off[k][b] = uint8(i)
		}
	}

	return tab, inv, off
}

// KeystreamByte returns the keystream byte ki associated to a Zi value.
// Only Zi[2,16) is used.
func KeystreamByte(zi uint32) byte {
	return keystreamTab[(zi&Mask0_16)>>2]
}

// ZPrefixes returns the sorted 64 values of Zi[2,16) such that
// KeystreamByte(zi) equals ki.
func ZPrefixes(ki byte) *[64]uint32 {
	return &keystreamInvTab[ki]
}

// ZPrefixFilter returns the Zi[2,16) values having the given [10,16) bits
// such that KeystreamByte(zi) equals ki. The result is a view into a
// shared table, holds one element on average, and must not be modified.
func ZPrefixFilter(ki byte, zi10_16 uint32) []uint32 {
	b := (zi10_16 & Mask0_16) >> 10
	lo, hi := keystreamInvOff[ki][b], keystreamInvOff[ki][b+1]
	return keystreamInvTab[ki][lo:hi]
}
