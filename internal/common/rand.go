package common

import "crypto/rand"

// GenerateRandByteArray returns size cryptographically random bytes.
// Panics if the system randomness source fails; there is no meaningful
// recovery from that for key material.
func GenerateRandByteArray(size int) []byte {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return buf
}

// WipeByteArray zeroes the buffer in place. Used for key material that is
// about to go out of scope.
func WipeByteArray(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
