// Package random provides the seeded source behind every decision a fuzzing
// session makes. Two generators created with the same seed produce the same
// sequence of draws.
package random

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"
)

// Generator wraps a seeded PCG source with the draw helpers used by the
// statement generator.
type Generator struct {
	rnd  *rand.Rand
	seed uint64
}

// New returns a generator for seed. A zero seed is replaced by the current
// time so that unseeded sessions still differ.
func New(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		rnd:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the seed the generator was created with.
func (g *Generator) Seed() uint64 {
	return g.seed
}

// NextBool returns a fair coin flip.
func (g *Generator) NextBool() bool {
	return g.rnd.Uint32()&1 == 1
}

// NextSmallNumber returns a value in [1, 10].
func (g *Generator) NextSmallNumber() uint32 {
	return g.RandomInt(1, 10)
}

// NextMediumNumber returns a value in [1, 100].
func (g *Generator) NextMediumNumber() uint32 {
	return g.RandomInt(1, 100)
}

// NextLargeNumber returns a value in [1, 1000].
func (g *Generator) NextLargeNumber() uint32 {
	return g.RandomInt(1, 1000)
}

// RandomInt returns a value in the closed range [lo, hi].
func (g *Generator) RandomInt(lo, hi uint32) uint32 {
	if hi < lo {
		panic(errors.AssertionFailedf("empty range [%d, %d]", lo, hi))
	}
	return lo + uint32(g.rnd.Uint64n(uint64(hi-lo)+1))
}

// NextUint32 returns a uniformly distributed uint32.
func (g *Generator) NextUint32() uint32 {
	return g.rnd.Uint32()
}

// NextInt64 returns a uniformly distributed int64, sign included.
func (g *Generator) NextInt64() int64 {
	return int64(g.rnd.Uint64())
}

// NextFloat64 returns a value in [0, 1).
func (g *Generator) NextFloat64() float64 {
	return g.rnd.Float64()
}

// Intn returns a value in [0, n).
func (g *Generator) Intn(n int) int {
	return g.rnd.Intn(n)
}

// Shuffle permutes n elements through swap.
func (g *Generator) Shuffle(n int, swap func(i, j int)) {
	g.rnd.Shuffle(n, swap)
}

var stringPieces = []string{
	"a", "b", "c", "hello", "world", "ClickHouse", " ", "", "0", "-1",
	"😀", "日本", "é", "\\n", "\\t", "\\0", "''", "%", "_", "NULL", "[]", "{}",
}

// NextString returns a quoted string literal of at most limit pieces.
func (g *Generator) NextString(quote string, allowEmpty bool, limit uint32) string {
	var b strings.Builder
	n := uint32(0)
	if limit > 0 {
		n = g.RandomInt(0, limit)
	}
	if n == 0 && !allowEmpty {
		n = 1
	}
	b.WriteString(quote)
	for i := uint32(0); i < n; i++ {
		piece := Pick(g, stringPieces)
		if quote == "'" {
			piece = strings.ReplaceAll(piece, "'", "\\'")
		}
		b.WriteString(piece)
	}
	b.WriteString(quote)
	return b.String()
}

// Pick returns one element of items chosen uniformly.
func Pick[T any](g *Generator, items []T) T {
	if len(items) == 0 {
		panic(errors.AssertionFailedf("pick from an empty collection"))
	}
	return items[g.Intn(len(items))]
}

// Sample returns up to n distinct elements of items in random order.
func Sample[T any](g *Generator, items []T, n int) []T {
	out := make([]T, len(items))
	copy(out, items)
	g.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if n < len(out) {
		out = out[:n]
	}
	return out
}
