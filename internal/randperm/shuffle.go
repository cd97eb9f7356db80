package randperm

// sbox is a pre-baked 256-entry permutation of [0, 256), computed once at
// package init from a fixed, non-cryptographic generator. It exists purely
// to give RR-set and nameserver iteration a cheap, deterministic-per-seed
// randomizer; it carries none of the security weight the Permutor does.
var sbox [256]byte

func init() {
	for i := range sbox {
		sbox[i] = byte(i)
	}

	var lcg uint32 = 0x2545f491
	for i := 255; i > 0; i-- {
		lcg = lcg*1103515245 + 12345
		j := int(lcg>>16) % (i + 1)
		sbox[i], sbox[j] = sbox[j], sbox[i]
	}
}

// Shuffle8 permutes the low byte of i via the S-box, indexed by
// (seed + i) mod 256. Used wherever the resolver needs to order a small
// collection (nameservers, hints entries) without the overhead of a full
// Permutor — callers draw seed once per iteration from a Source.
func Shuffle8(i, seed uint8) uint8 {
	return sbox[seed+i]
}
