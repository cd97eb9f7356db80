package randperm

// teaRounds is the number of TEA (Tiny Encryption Algorithm) cycles used as
// the Feistel round function, per the original design's "32-cycle" TEA.
// Each cycle advances both the accumulator and the delta sum once.
const teaRounds = 32

// teaDelta is the canonical TEA magic constant, derived from the golden
// ratio: floor(2^32 / phi).
const teaDelta = 0x9E3779B9

// teaRound computes TEA(v, key) truncated to the low nbits bits. key is the
// 128-bit round key drawn from the PRNG at permutor init; v is the half-word
// being Feistel-mixed. TEA itself operates on a 64-bit block (two 32-bit
// words); here it is used purely as a keyed mixing function over a single
// 32-bit half, which is the role the original Feistel/TEA construction
// assigns it — the round function need not be invertible, only mixing.
func teaRound(v uint32, key [4]uint32, nbits uint) uint32 {
	var sum uint32
	var y, z uint32 = v, v

	for i := 0; i < teaRounds; i++ {
		sum += teaDelta
		y += ((z << 4) + key[0]) ^ (z + sum) ^ ((z >> 5) + key[1])
		z += ((y << 4) + key[2]) ^ (y + sum) ^ ((y >> 5) + key[3])
	}

	mask := uint32(1)<<nbits - 1
	return (y ^ z) & mask
}
