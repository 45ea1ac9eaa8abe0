package zipcipher

import "testing"

func TestCRC32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x12345678, 0xdeadbeef, 0xffffffff, 33555384}
	for _, v := range values {
		for b := 0; b < 256; b++ {
			fwd := CRC32(v, byte(b))
			if got := CRC32Inv(fwd, byte(b)); got != v {
				t.Fatalf("CRC32Inv(CRC32(%#x, %#x)) = %#x, want %#x", v, b, got, v)
			}
			inv := CRC32Inv(v, byte(b))
			if got := CRC32(inv, byte(b)); got != v {
				t.Fatalf("CRC32(CRC32Inv(%#x, %#x)) = %#x, want %#x", v, b, got, v)
			}
		}
	}
}

func TestCRC32KnownValue(t *testing.T) {
	// CRC-32 of "a": feed one byte into an inverted initial state.
	crc := CRC32(0xffffffff, 'a') ^ 0xffffffff
	if crc != 0xe8b7be43 {
		t.Errorf("CRC32 of %q = %#x, want 0xe8b7be43", "a", crc)
	}
}

func TestZim1_10_32(t *testing.T) {
	if got := Zim1_10_32(33555384); got != 1838198784 {
		t.Errorf("Zim1_10_32(33555384) = %d, want 1838198784", got)
	}
}

func TestYi24_32ConsistentWithUpdate(t *testing.T) {
	// Forward: Zi = CRC32(Zim1, MSB(Yi)). Yi24_32 must recover MSB(Yi)<<24.
	zim1 := uint32(0x34567890)
	yi := uint32(0xa1b2c3d4)
	zi := CRC32(zim1, MSB(yi))
	if got := Yi24_32(zi, zim1); got != yi&Mask24_32 {
		t.Errorf("Yi24_32 = %#x, want %#x", got, yi&Mask24_32)
	}
}
