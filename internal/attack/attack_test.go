package attack

import (
	"bytes"
	"errors"
	"testing"

	"zipcrack/internal/zipcipher"
)

// encryptEntry simulates a ZipCrypto encryption: the state is fed the
// password, then the 12-byte header, then the entry data. It returns the
// state at byte 0 of the encrypted stream (the password-derived keys) and
// the full entry ciphertext including the encrypted header.
func encryptEntry(password string, data []byte) (zipcipher.Keys, []byte) {
	k := zipcipher.NewKeys()
	for i := 0; i < len(password); i++ {
		k.Update(password[i])
	}
	k0 := *k

	header := make([]byte, HeaderSize)
	for i := range header {
		header[i] = byte(i*37 + 11)
	}

	ciphertext := make([]byte, 0, HeaderSize+len(data))
	for _, p := range append(header, data...) {
		ciphertext = append(ciphertext, p^k.StreamByte())
		k.Update(p)
	}
	return k0, ciphertext
}

func testPlaintext(n int) []byte {
	base := []byte("The quick brown fox jumps over the lazy dog. 0123456789\r\n")
	out := make([]byte, 0, n)
	for len(out) < n {
		out = append(out, base...)
	}
	return out[:n]
}

func TestNewDataValidation(t *testing.T) {
	plain := testPlaintext(16)
	_, cipher := encryptEntry("pw", plain)

	cases := []struct {
		name       string
		ciphertext []byte
		plaintext  []byte
		offset     int
		wantErr    error
	}{
		{"ok", cipher, plain, 0, nil},
		{"plaintext too small", cipher, plain[:11], 0, ErrPlaintextTooSmall},
		{"offset too small", cipher, plain, -13, ErrOffsetTooSmall},
		{"offset too large", cipher, plain, 1, ErrOffsetTooLarge},
		{"ciphertext too short", cipher[:20], plain, 0, ErrOffsetTooLarge},
	}
	for _, c := range cases {
		_, err := NewData(c.ciphertext, c.plaintext, c.offset)
		if !errors.Is(err, c.wantErr) {
			t.Errorf("%s: NewData error = %v, want %v", c.name, err, c.wantErr)
		}
	}
}

func TestNewDataKeystream(t *testing.T) {
	plain := testPlaintext(20)
	_, cipher := encryptEntry("pw", plain)

	d, err := NewData(cipher, plain, 0)
	if err != nil {
		t.Fatalf("NewData: %v", err)
	}
	for j := range plain {
		if d.Keystream[j] != plain[j]^cipher[HeaderSize+j] {
			t.Fatalf("Keystream[%d] = %#x, want P^C", j, d.Keystream[j])
		}
	}
}

// trueZAt returns the Z register value the cipher holds before encrypting
// plaintext byte i of the entry data.
func trueZAt(password string, data []byte, i int) uint32 {
	k := zipcipher.NewKeys()
	for j := 0; j < len(password); j++ {
		k.Update(password[j])
	}
	header := make([]byte, HeaderSize)
	for j := range header {
		header[j] = byte(j*37 + 11)
	}
	for _, p := range header {
		k.Update(p)
	}
	for j := 0; j < i; j++ {
		k.Update(data[j])
	}
	return k.Z()
}

func TestZReductionKeepsTrueCandidate(t *testing.T) {
	plain := testPlaintext(16)
	_, cipher := encryptEntry("hunter2", plain)
	d, err := NewData(cipher, plain, 0)
	if err != nil {
		t.Fatalf("NewData: %v", err)
	}

	zr := NewZReduction(d.Keystream)
	zr.Generate()
	zr.Reduce()

	if zr.Index() < WindowSize-1 || zr.Index() >= len(d.Keystream) {
		t.Fatalf("Index() = %d out of range", zr.Index())
	}

	want := trueZAt("hunter2", plain, zr.Index()) & zipcipher.Mask2_32
	for _, z := range zr.Candidates() {
		if z == want {
			return
		}
	}
	t.Fatalf("true Z[2,32) %#x at index %d not among %d candidates", want, zr.Index(), zr.Size())
}

func TestZReductionCandidatesSortedUnique(t *testing.T) {
	plain := testPlaintext(14)
	_, cipher := encryptEntry("pw", plain)
	d, _ := NewData(cipher, plain, 0)

	zr := NewZReduction(d.Keystream)
	zr.Generate()
	zr.Reduce()

	cands := zr.Candidates()
	for i := 1; i < len(cands); i++ {
		if cands[i-1] >= cands[i] {
			t.Fatalf("candidates not sorted/unique at %d: %#x >= %#x", i, cands[i-1], cands[i])
		}
	}
}

func TestTryCandidateTrueSeed(t *testing.T) {
	plain := testPlaintext(40)
	k0, cipher := encryptEntry("swordfish", plain)
	d, err := NewData(cipher, plain, 0)
	if err != nil {
		t.Fatalf("NewData: %v", err)
	}

	index := 5 // window covers plaintext positions 5..16
	a := NewAttack(d, index)
	seed := trueZAt("swordfish", plain, index+11) & zipcipher.Mask2_32
	if !a.TryCandidate(seed) {
		t.Fatal("TryCandidate rejected the true seed")
	}

	keys := a.Keys()
	if keys.X() != k0.X() || keys.Y() != k0.Y() || keys.Z() != k0.Z() {
		t.Fatalf("Keys() = (%#x, %#x, %#x), want (%#x, %#x, %#x)",
			keys.X(), keys.Y(), keys.Z(), k0.X(), k0.Y(), k0.Z())
	}
}

func TestRecoverEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline is slow")
	}

	// Enough plaintext for the reduction to contract the candidate set;
	// a short run would leave millions of seeds and take hours.
	plain := testPlaintext(4096)
	k0, cipher := encryptEntry("correct horse", plain)
	d, err := NewData(cipher, plain, 0)
	if err != nil {
		t.Fatalf("NewData: %v", err)
	}

	keys, err := Recover(d, 0, nil)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if keys.X() != k0.X() || keys.Y() != k0.Y() || keys.Z() != k0.Z() {
		t.Fatalf("recovered (%#x, %#x, %#x), want (%#x, %#x, %#x)",
			keys.X(), keys.Y(), keys.Z(), k0.X(), k0.Y(), k0.Z())
	}

	// Soundness: the recovered state must decrypt the whole entry.
	got, err := Decipher(*keys, cipher)
	if err != nil {
		t.Fatalf("Decipher: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatal("deciphered entry does not match the plaintext")
	}
}

func TestRecoverWithOffset(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline is slow")
	}

	// Known plaintext starts 17 bytes into the entry data.
	const offset = 17
	unknown := testPlaintext(offset)
	known := testPlaintext(4096)
	k0, cipher := encryptEntry("tr0ub4dor", append(append([]byte{}, unknown...), known...))

	d, err := NewData(cipher, known, offset)
	if err != nil {
		t.Fatalf("NewData: %v", err)
	}

	keys, err := Recover(d, 0, nil)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if keys.X() != k0.X() || keys.Y() != k0.Y() || keys.Z() != k0.Z() {
		t.Fatalf("recovered (%#x, %#x, %#x), want (%#x, %#x, %#x)",
			keys.X(), keys.Y(), keys.Z(), k0.X(), k0.Y(), k0.Z())
	}
}

func TestDecipherRoundTrip(t *testing.T) {
	plain := testPlaintext(64)
	k0, cipher := encryptEntry("pw", plain)

	got, err := Decipher(k0, cipher)
	if err != nil {
		t.Fatalf("Decipher: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatal("Decipher did not invert encryption")
	}

	if _, err := Decipher(k0, cipher[:HeaderSize-1]); !errors.Is(err, ErrCiphertextTooSmall) {
		t.Errorf("Decipher on short input: err = %v, want ErrCiphertextTooSmall", err)
	}
}

func TestRecoverNoSolution(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline is slow")
	}

	// Wrong plaintext for the ciphertext region: the attack must exhaust
	// all candidates and report no solution.
	plain := testPlaintext(4096)
	_, cipher := encryptEntry("pw", plain)
	wrong := bytes.ToUpper(plain)

	d, err := NewData(cipher, wrong, 0)
	if err != nil {
		t.Fatalf("NewData: %v", err)
	}
	if _, err := Recover(d, 0, nil); !errors.Is(err, ErrNoSolution) {
		t.Fatalf("Recover error = %v, want ErrNoSolution", err)
	}
}
