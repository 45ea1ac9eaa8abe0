package zipcipher

import "testing"

func TestMultInvByte(t *testing.T) {
	for x := 0; x < 256; x++ {
		if got := MultInvByte(byte(x)) * Mult; got != uint32(x) {
			t.Errorf("MultInvByte(%d)*Mult = %d, want %d", x, got, x)
		}
	}
}

func TestMultInverse(t *testing.T) {
	mult, multInv := Mult, MultInv
	if mult*multInv != 1 {
		t.Errorf("Mult*MultInv = %#x, want 1", mult*multInv)
	}
}

func TestMSBProdFiber2(t *testing.T) {
	for m := 0; m < 256; m++ {
		seen := make(map[byte]bool)
		for _, x := range MSBProdFiber2(byte(m)) {
			if seen[x] {
				t.Fatalf("MSBProdFiber2(%d) contains %d twice", m, x)
			}
			seen[x] = true
			p := int(MSB(MultInvByte(x)))
			if p != m && (p+1)%256 != m {
				t.Fatalf("MSBProdFiber2(%d) contains %d with MSB %d", m, x, p)
			}
		}
		// No preimage may be missing from its buckets.
		for x := 0; x < 256; x++ {
			p := int(MSB(MultInvByte(byte(x))))
			if (p == m || (p+1)%256 == m) && !seen[byte(x)] {
				t.Fatalf("MSBProdFiber2(%d) is missing %d (MSB %d)", m, x, p)
			}
		}
	}
}

func TestMSBProdFiber3ContainsFiber2(t *testing.T) {
	for m := 0; m < 256; m++ {
		in3 := make(map[byte]bool)
		for _, x := range MSBProdFiber3(byte(m)) {
			in3[x] = true
			p := int(MSB(MultInvByte(x)))
			if p != m && (p+1)%256 != m && (p+255)%256 != m {
				t.Fatalf("MSBProdFiber3(%d) contains %d with MSB %d", m, x, p)
			}
		}
		for _, x := range MSBProdFiber2(byte(m)) {
			if !in3[x] {
				t.Fatalf("MSBProdFiber3(%d) is missing fiber2 member %d", m, x)
			}
		}
	}
}
