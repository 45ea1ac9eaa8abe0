// Package attack recovers the internal state of the legacy ZIP stream
// cipher from a contiguous run of known plaintext (the Roos /
// Biham-Kocher known-plaintext attack).
//
// The pipeline is Data -> ZReduction -> Attack: Data derives the
// keystream from aligned plaintext and ciphertext, ZReduction prunes the
// space of Z register candidates by walking the keystream backward, and
// Attack completes each surviving candidate into a full (X, Y, Z) state.
package attack

import "errors"

// HeaderSize is the length of the random encryption header ZIP prepends
// to every encrypted entry's stream.
const HeaderSize = 12

// WindowSize is the attack window length and the minimum number of
// contiguous known plaintext bytes required.
const WindowSize = 12

// Errors reported by NewData input validation.
var (
	ErrPlaintextTooSmall = errors.New("plaintext is too small, at least 12 bytes are required")
	ErrOffsetTooSmall    = errors.New("offset is too small")
	ErrOffsetTooLarge    = errors.New("offset is too large for the given ciphertext")
)

// Data holds the attack input: the entry's raw ciphertext (including the
// 12-byte encryption header), the known plaintext, and the keystream
// derived from the two.
//
// Offset aligns the plaintext inside the ciphertext: plaintext byte j
// corresponds to ciphertext byte HeaderSize+Offset+j. A negative offset
// down to -HeaderSize means the known plaintext starts inside the header.
type Data struct {
	Ciphertext []byte
	Plaintext  []byte
	Keystream  []byte
	Offset     int
}

// NewData validates the alignment and derives the keystream.
func NewData(ciphertext, plaintext []byte, offset int) (*Data, error) {
	if HeaderSize+offset < 0 {
		return nil, ErrOffsetTooSmall
	}
	if len(plaintext) < WindowSize {
		return nil, ErrPlaintextTooSmall
	}
	if HeaderSize+offset+len(plaintext) > len(ciphertext) {
		return nil, ErrOffsetTooLarge
	}

	keystream := make([]byte, len(plaintext))
	for j, p := range plaintext {
		keystream[j] = p ^ ciphertext[HeaderSize+offset+j]
	}

	return &Data{
		Ciphertext: ciphertext,
		Plaintext:  plaintext,
		Keystream:  keystream,
		Offset:     offset,
	}, nil
}
