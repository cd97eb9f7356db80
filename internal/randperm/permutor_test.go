package randperm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// lcgSource is a deterministic, seedable Source for tests — production code
// must always use Crypto, but reproducible tests need a fixed sequence.
type lcgSource struct {
	state uint32
}

func newLCGSource(seed uint32) *lcgSource {
	return &lcgSource{state: seed}
}

func (s *lcgSource) Uint32() uint32 {
	s.state = s.state*1664525 + 1013904223
	return s.state
}

func TestPermutorFullPeriodNoRepeat(t *testing.T) {
	p := New(newLCGSource(1), 0, 255)
	require.EqualValues(t, 256, p.Period())

	seen := make(map[uint64]bool, 256)
	for i := 0; i < 256; i++ {
		v := p.Step()
		require.False(t, seen[v], "value %d repeated before full period elapsed", v)
		require.GreaterOrEqual(t, v, uint64(0))
		require.LessOrEqual(t, v, uint64(255))
		seen[v] = true
	}
	require.Len(t, seen, 256)
}

func TestPermutorArbitraryRange(t *testing.T) {
	// A non-power-of-two range exercises cycle walking.
	p := New(newLCGSource(42), 10, 29) // 20 values
	seen := make(map[uint64]bool, 20)
	for i := 0; i < 20; i++ {
		v := p.Step()
		require.GreaterOrEqual(t, v, uint64(10))
		require.LessOrEqual(t, v, uint64(29))
		require.False(t, seen[v])
		seen[v] = true
	}
}

func TestPermutorFullUint16Range(t *testing.T) {
	p := New(newLCGSource(7), 0, 65535)
	seen := make(map[uint64]bool, 65536)
	for i := 0; i < 65536; i++ {
		v := p.Step()
		require.False(t, seen[v])
		seen[v] = true
	}
}

func TestShuffle8CoversByteRange(t *testing.T) {
	seen := make(map[uint8]bool, 256)
	for i := 0; i < 256; i++ {
		v := Shuffle8(uint8(i), 17)
		seen[v] = true
	}
	require.Len(t, seen, 256, "shuffle8 must be a bijection over the byte range for any fixed seed")
}

func TestShuffle8VariesWithSeed(t *testing.T) {
	base := Shuffle8(5, 0)
	differed := false
	for seed := 1; seed < 256; seed++ {
		if Shuffle8(5, uint8(seed)) != base {
			differed = true
			break
		}
	}
	require.True(t, differed, "shuffle8 output for a fixed index should vary across seeds")
}
