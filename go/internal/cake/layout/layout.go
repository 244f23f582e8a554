// Package layout places candles on the cake.
//
// Candles sit on concentric rings: ring i holds 2^i candles and the last ring
// holds whatever remains. The ring-ordered positions are then shuffled with a
// generator seeded only by the candle count, so the same count always gives
// the same arrangement on every client.
package layout

import (
	"math"
	"math/bits"
	"math/rand/v2"
)

// outerRadius is the radius budget shared by all rings, in cake units.
const outerRadius = 0.9

// shuffleStream is the fixed PCG stream used with the candle-count seed.
const shuffleStream = 0x63616b65

// Point is a candle position on the cake top; Z grows towards the viewer.
type Point struct {
	X float64
	Z float64
}

// RingCount returns ceil(log2(n)), or 0 when n < 2.
func RingCount(n int) int {
	if n < 2 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// Rings returns n positions in ring order, innermost ring first.
func Rings(n int) []Point {
	if n <= 0 {
		return []Point{}
	}

	ringCount := RingCount(n)
	dr := 0.0
	if ringCount > 0 {
		dr = outerRadius / float64(ringCount)
	}

	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		ring := bits.Len(uint(i+1)) - 1
		ringStart := 1<<ring - 1

		perRing := 1 << ring
		if ringStart+perRing > n {
			perRing = n - ringStart
		}

		phi := 2 * math.Pi / float64(perRing) * float64(i-ringStart)
		if ringCount > 0 {
			phi += math.Pi * float64(ring) / float64(ringCount)
		}
		r := float64(ring) * dr

		points = append(points, Point{
			X: r * math.Cos(phi),
			Z: r * math.Sin(phi),
		})
	}
	return points
}

// Arrange returns the n ring positions permuted by a shuffle seeded with n.
func Arrange(n int) []Point {
	points := Rings(n)
	Shuffle(points, uint64(len(points)))
	return points
}

// Shuffle permutes points in place with a Fisher-Yates shuffle driven by a
// PCG generator seeded with seed.
func Shuffle(points []Point, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, shuffleStream))
	rng.Shuffle(len(points), func(i, j int) {
		points[i], points[j] = points[j], points[i]
	})
}
