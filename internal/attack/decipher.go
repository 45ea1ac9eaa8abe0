package attack

import (
	"errors"

	"zipcrack/internal/zipcipher"
)

// ErrCiphertextTooSmall is returned when an entry stream is shorter than
// the encryption header.
var ErrCiphertextTooSmall = errors.New("ciphertext is smaller than the encryption header")

// Decipher decrypts an encrypted entry stream with keys recovered for its
// archive: the 12-byte header is decrypted and discarded, the rest is the
// entry's stored data. The keys are taken by value so the caller's state
// is left at byte 0.
func Decipher(keys zipcipher.Keys, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < HeaderSize {
		return nil, ErrCiphertextTooSmall
	}

	plain := make([]byte, 0, len(ciphertext)-HeaderSize)
	for i, c := range ciphertext {
		p := c ^ keys.StreamByte()
		keys.Update(p)
		if i >= HeaderSize {
			plain = append(plain, p)
		}
	}
	return plain, nil
}
