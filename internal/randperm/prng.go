// Package randperm provides a pluggable uniform PRNG and a keyed Feistel
// permutor built on top of it, used to emit non-repeating sequences of
// 16-bit DNS transaction IDs and to shuffle RR-set / nameserver iteration
// order.
package randperm

import (
	"crypto/rand"
	"encoding/binary"
)

// Source is a pluggable uniform random source. The zero value of Crypto
// satisfies it; callers may substitute a deterministic source for tests.
//
// This replaces the teacher's weakly-linked dns_random function pointer
// with a constructor-injected capability, per DESIGN NOTES on hidden
// global state: nothing in this package reaches for a package-level RNG.
type Source interface {
	// Uint32 returns a uniformly distributed 32-bit value.
	Uint32() uint32
}

// Crypto is a Source backed by crypto/rand. It is the default source for
// production use; callers embedding this library should prefer it over
// math/rand for anything that feeds transaction IDs or source ports.
type Crypto struct{}

// Uint32 returns a cryptographically random 32-bit value.
func (Crypto) Uint32() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing means the platform entropy source is broken;
		// proceeding with a predictable fallback would defeat the purpose
		// of this package, so callers get a panic instead of silent bias.
		panic("randperm: crypto/rand unavailable: " + err.Error())
	}
	return binary.BigEndian.Uint32(buf[:])
}

// Uint64 draws two Uint32s and combines them into a 64-bit value.
func Uint64(s Source) uint64 {
	return uint64(s.Uint32())<<32 | uint64(s.Uint32())
}
