// Package noise generates deterministic, position-addressable Gaussian
// background noise. Every block of samples is produced from a fresh
// pseudo-random sub-stream keyed on (seed, segment, block index), so any
// block can be recomputed at any time, in any order, from any process, and
// always comes out bit-identical. No long-lived generator is ever advanced
// sequentially.
package noise

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rory-bedford/spikeinterface/extractor"
)

// splitmix64 finalizer. Bijective, so distinct block keys can never collide
// into the same sub-stream state.
func mix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// blockSource returns an independent PCG stream for one noise block key.
func blockSource(seed uint64, segment int, block uint64) *rand.PCG {
	hi := mix64(seed ^ mix64(uint64(segment)))
	lo := mix64(seed + 0x632be59bd9b4e019*uint64(segment+1) + block)
	return rand.NewPCG(hi, lo)
}

// generateBlock computes one size-by-channels block of Gaussian noise with
// standard deviation level for the given block key.
func generateBlock(seed uint64, segment int, block uint64, size, channels int, level float64, dtype extractor.DType) *extractor.Matrix {
	normal := distuv.Normal{Mu: 0, Sigma: level, Src: blockSource(seed, segment, block)}
	m := extractor.NewMatrix(dtype, size, channels)
	for i := 0; i < size; i++ {
		for c := 0; c < channels; c++ {
			m.Set(i, c, normal.Rand())
		}
	}
	return m
}
