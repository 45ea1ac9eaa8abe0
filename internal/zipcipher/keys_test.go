package zipcipher

import "testing"

func TestKeysInitialState(t *testing.T) {
	k := NewKeys()
	if k.X() != 0x12345678 || k.Y() != 0x23456789 || k.Z() != 0x34567890 {
		t.Errorf("NewKeys() = (%#x, %#x, %#x), want (0x12345678, 0x23456789, 0x34567890)", k.X(), k.Y(), k.Z())
	}
}

func TestKeysRoundTrip(t *testing.T) {
	k := NewKeys()
	for _, b := range []byte("password") {
		k.Update(b)
	}

	plaintext := []byte("PK\x03\x04 some known bytes \x00\xff")
	states := make([]Keys, 0, len(plaintext))
	ciphertext := make([]byte, len(plaintext))
	for i, p := range plaintext {
		states = append(states, *k)
		ciphertext[i] = p ^ k.StreamByte()
		k.Update(p)
	}

	// Rewinding over the ciphertext must visit the same states in reverse.
	for i := len(plaintext) - 1; i >= 0; i-- {
		k.UpdateBackward(ciphertext[i])
		if *k != states[i] {
			t.Fatalf("state after rewinding byte %d = (%#x, %#x, %#x), want (%#x, %#x, %#x)",
				i, k.X(), k.Y(), k.Z(), states[i].X(), states[i].Y(), states[i].Z())
		}
	}
}

func TestKeysSet(t *testing.T) {
	k := NewKeys()
	k.Set(0x8879dfed, 0x14335b6b, 0x8dc58b53)
	if k.X() != 0x8879dfed || k.Y() != 0x14335b6b || k.Z() != 0x8dc58b53 {
		t.Errorf("Set did not stick: (%#x, %#x, %#x)", k.X(), k.Y(), k.Z())
	}
}
