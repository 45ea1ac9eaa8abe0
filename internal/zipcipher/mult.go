package zipcipher

// multInvTab[x] = x * MultInv (mod 2^32) for every byte x.
//
// The fiber tables answer the reverse question during the attack's Y
// recursion: which bytes x could have produced a product with a given MSB?
// Bucket m of fiber2 holds the bytes x with MSB(x*MultInv) in {m-1, m};
// fiber3 widens that to {m-1, m, m+1}. Bucket indexing is modulo 256.
// Typical bucket cardinality is 1-3, so the buckets are slices into two
// packed backing arrays and lookups never allocate.
var multInvTab, msbProdFiber2, msbProdFiber3 = buildMultTabs()

func buildMultTabs() (tab [256]uint32, fiber2, fiber3 [256][]byte) {
	var counts2, counts3 [256]int

	prodInv := uint32(0)
	for x := 0; x < 256; x++ {
		tab[x] = prodInv
		m := int(MSB(prodInv))
		counts2[m]++
		counts2[(m+1)%256]++
		counts3[(m+255)%256]++
		counts3[m]++
		counts3[(m+1)%256]++
		prodInv += MultInv
	}

	// Carve bucket slices out of packed backing arrays.
	backing2 := make([]byte, 0, 2*256)
	backing3 := make([]byte, 0, 3*256)
	for m := 0; m < 256; m++ {
		n := len(backing2)
		backing2 = backing2[:n+counts2[m]]
		fiber2[m] = backing2[n:n:len(backing2)]
		n = len(backing3)
		backing3 = backing3[:n+counts3[m]]
		fiber3[m] = backing3[n:n:len(backing3)]
	}

	prodInv = 0
	for x := 0; x < 256; x++ {
		m := int(MSB(prodInv))
		fiber2[m] = append(fiber2[m], byte(x))
		fiber2[(m+1)%256] = append(fiber2[(m+1)%256], byte(x))
		fiber3[(m+255)%256] = append(fiber3[(m+255)%256], byte(x))
		fiber3[m] = append(fiber3[m], byte(x))
		fiber3[(m+1)%256] = append(fiber3[(m+1)%256], byte(x))
		prodInv += MultInv
	}

	return tab, fiber2, fiber3
}

// MultInvByte returns x * MultInv (mod 2^32) from the lookup table.
func MultInvByte(x byte) uint32 {
	return multInvTab[x]
}

// MSBProdFiber2 returns the bytes x such that MSB(x*MultInv) equals
// msbProd or msbProd-1. The returned slice is a view into a shared table
// and must not be modified.
func MSBProdFiber2(msbProd byte) []byte {
	return msbProdFiber2[msbProd]
}

// MSBProdFiber3 returns the bytes x such that MSB(x*MultInv) equals
// msbProd-1, msbProd or msbProd+1. The returned slice is a view into a
// shared table and must not be modified.
func MSBProdFiber3(msbProd byte) []byte {
	return msbProdFiber3[msbProd]
}
