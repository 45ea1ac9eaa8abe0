package zipcipher

// Keys holds the three words defining the cipher state.
type Keys struct {
	x, y, z uint32
}

// NewKeys returns the state every ZIP encryption starts from, before the
// password bytes are fed in.
func NewKeys() *Keys {
	return &Keys{x: 0x12345678, y: 0x23456789, z: 0x34567890}
}

// Set overwrites the state with recovered register values.
func (k *Keys) Set(x, y, z uint32) {
	k.x, k.y, k.z = x, y, z
}

// Update advances the state with a plaintext byte.
func (k *Keys) Update(p byte) {
	k.x = CRC32(k.x, p)
	k.y = (k.y + uint32(LSB(k.x)))*Mult + 1
	k.z = CRC32(k.z, MSB(k.y))
}

// UpdateBackward rewinds the state across a ciphertext byte, inverting
// Update for the plaintext byte hidden under c.
func (k *Keys) UpdateBackward(c byte) {
	k.z = CRC32Inv(k.z, MSB(k.y))
	k.y = (k.y-1)*MultInv - uint32(LSB(k.x))
	k.x = CRC32Inv(k.x, c^KeystreamByte(k.z))
}

// StreamByte returns the keystream byte the state would emit next.
func (k *Keys) StreamByte() byte {
	return KeystreamByte(k.z)
}

// X returns the X register.
func (k *Keys) X() uint32 { return k.x }

// Y returns the Y register.
func (k *Keys) Y() uint32 { return k.y }

// Z returns the Z register.
func (k *Keys) Z() uint32 { return k.z }
