// Package seed derives independent, reproducible random streams from a
// single master seed.
//
// Streams are keyed by label rather than by draw order, so adding a new
// consumer never shifts the numbers another consumer sees.
package seed

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// splitMixGamma is the golden-ratio increment used by SplitMix64.
const splitMixGamma = 0x9e3779b97f4a7c15

// Derive returns the sub-seed for label under master.
func Derive(master uint64, label string) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], master)

	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(label)
	return d.Sum64()
}

// Spawn returns k independent seeds derived from master.
// Spawn(k, m)[i] is stable for any k > i.
func Spawn(k int, master uint64) []uint64 {
	if k <= 0 {
		return nil
	}
	seeds := make([]uint64, k)
	for i := range seeds {
		seeds[i] = Derive(master, fmt.Sprintf("spawn/%d", i))
	}
	return seeds
}

// NewSource returns a PCG source for seed. The second PCG word is a
// SplitMix64 scramble of seed so that nearby seeds diverge immediately.
func NewSource(seed uint64) *rand.PCG {
	return rand.NewPCG(seed, mix(seed+splitMixGamma))
}

// NewRand returns a generator over NewSource(seed).
func NewRand(seed uint64) *rand.Rand {
	return rand.New(NewSource(seed))
}

// Streams hands out labelled sources derived from one master seed.
type Streams struct {
	master uint64
}

// NewStreams creates a stream factory for master.
func NewStreams(master uint64) Streams {
	return Streams{master: master}
}

// Master returns the master seed.
func (s Streams) Master() uint64 { return s.master }

// Seed returns the derived seed for label.
func (s Streams) Seed(label string) uint64 {
	return Derive(s.master, label)
}

// Source returns a fresh source for label. Two calls with the same label
// return independent sources that produce identical sequences.
func (s Streams) Source(label string) *rand.PCG {
	return NewSource(s.Seed(label))
}

// Rand returns a fresh generator for label.
func (s Streams) Rand(label string) *rand.Rand {
	return rand.New(s.Source(label))
}

func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
