package attack

import (
	"slices"

	"zipcrack/internal/zipcipher"
)

const (
	// waitSize is the candidate-set size below which the reduction starts
	// a bounded wait for a better minimum instead of walking the whole
	// keystream.
	waitSize = 1 << 8
	// trackSize is the set size below which minima are tracked at all.
	trackSize = 1 << 16
)

// ZReduction prunes the space of Zi[2,32) candidates by walking the
// keystream backward. It starts from the 2^22 values consistent with the
// last keystream byte and intersects each step with the keystream filter,
// keeping track of the index with the smallest surviving set. That index
// and its candidate set seed the Attack.
type ZReduction struct {
	keystream  []byte
	candidates []uint32
	index      int

	// Progress, when set, is called after each backward step with the
	// number of processed steps and the total.
	Progress func(done, total int)
}

// NewZReduction returns a reduction over the given keystream.
func NewZReduction(keystream []byte) *ZReduction {
	return &ZReduction{keystream: keystream, index: len(keystream) - 1}
}

// Generate seeds the candidate set: for the last keystream byte, all 64
// values of Z[2,16) combined with all 2^16 values of the high half,
// placed at the last keystream index.
func (zr *ZReduction) Generate() {
	zr.index = len(zr.keystream) - 1
	zr.candidates = make([]uint32, 0, 1<<22)
	for _, z2_16 := range zipcipher.ZPrefixes(zr.keystream[len(zr.keystream)-1]) {
		for high := uint32(0); high < 1<<16; high++ {
			zr.candidates = append(zr.candidates, high<<16|z2_16)
		}
	}
}

// Reduce walks the keystream backward from the seed, at each step mapping
// every candidate Zi[2,32) to the Z{i-1}[2,32) values consistent with the
// previous keystream byte. The smallest surviving set is tracked; once a
// minimum below waitSize has been hit, the walk continues for at most
// bestSize*4 further non-improving steps before giving up on finding a
// better one.
func (zr *ZReduction) Reduce() {
	var (
		tracking  bool
		bestCopy  []uint32
		bestIndex int
		bestSize  = trackSize

		waiting bool
		wait    int
	)

	total := len(zr.keystream) - WindowSize
	for i := len(zr.keystream) - 1; i >= WindowSize; i-- {
		zim1 := make([]uint32, 0, len(zr.candidates))

		// Generate the Z{i-1}[2,32) values.
		for _, zi2_32 := range zr.candidates {
			zim1_10_32 := zipcipher.Zim1_10_32(zi2_32)
			for _, zim1_2_16 := range zipcipher.ZPrefixFilter(zr.keystream[i-1], zim1_10_32) {
				zim1 = append(zim1, zim1_10_32|zim1_2_16)
			}
		}

		slices.Sort(zim1)
		zim1 = slices.Compact(zim1)

		// Track the smallest set seen so far.
		if len(zim1) <= bestSize {
			tracking = true
			bestIndex = i - 1
			bestSize = len(zim1)
			waiting = false
		} else if tracking {
			if bestIndex == i {
				// Just passed a minimum; the current candidates are the
				// best set and the size is about to grow.
				bestCopy = slices.Clone(zr.candidates)
				if bestSize <= waitSize {
					waiting = true
					wait = bestSize * 4
				}
			}
			if waiting {
				wait--
				if wait <= 0 {
					break
				}
			}
		}

		zr.candidates = zim1
		if zr.Progress != nil {
			zr.Progress(len(zr.keystream)-i, total)
		}
	}

	if tracking {
		if bestIndex != WindowSize-1 {
			zr.candidates = bestCopy
		}
		zr.index = bestIndex
	} else {
		zr.index = WindowSize - 1
	}
}

// Candidates returns the surviving Zi[2,32) values.
func (zr *ZReduction) Candidates() []uint32 {
	return zr.candidates
}

// Size returns the number of surviving candidates.
func (zr *ZReduction) Size() int {
	return len(zr.candidates)
}

// Index returns the keystream index at which the candidates are valid.
func (zr *ZReduction) Index() int {
	return zr.index
}
