package layout

import (
	"math"
	"sort"
	"testing"
)

const eps = 1e-9

func TestRingCount(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{8, 3},
		{9, 4},
		{26, 5},
	}
	for _, tt := range tests {
		if got := RingCount(tt.n); got != tt.want {
			t.Errorf("RingCount(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestArrangeReturnsExactlyNPositions(t *testing.T) {
	for n := 0; n <= 70; n++ {
		if got := len(Arrange(n)); got != n {
			t.Fatalf("len(Arrange(%d)) = %d", n, got)
		}
	}
}

func TestArrangeIsDeterministic(t *testing.T) {
	for _, n := range []int{1, 2, 5, 8, 26, 100} {
		a, b := Arrange(n), Arrange(n)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("Arrange(%d)[%d] differs between calls: %v vs %v", n, i, a[i], b[i])
			}
		}
	}
}

func TestArrangeZeroIsEmpty(t *testing.T) {
	points := Arrange(0)
	if points == nil || len(points) != 0 {
		t.Fatalf("Arrange(0) = %#v, want empty non-nil slice", points)
	}
}

func TestSingleCandleSitsAtCentre(t *testing.T) {
	p := Arrange(1)[0]
	if math.IsNaN(p.X) || math.IsNaN(p.Z) {
		t.Fatalf("single candle position is NaN: %v", p)
	}
	if math.Abs(p.X) > eps || math.Abs(p.Z) > eps {
		t.Fatalf("single candle at %v, want origin", p)
	}
}

func TestRingsRadii(t *testing.T) {
	n := 5 // rings of 1, 2 and a truncated ring of 2
	dr := outerRadius / float64(RingCount(n))
	wantRing := []int{0, 1, 1, 2, 2}

	for i, p := range Rings(n) {
		r := math.Hypot(p.X, p.Z)
		want := float64(wantRing[i]) * dr
		if math.Abs(r-want) > eps {
			t.Errorf("candle %d radius = %f, want %f", i, r, want)
		}
	}
}

func TestRingsTruncatedRingIsEvenlySpaced(t *testing.T) {
	n := 5
	points := Rings(n)
	// Ring 2 holds the remaining two candles, which must be opposite each other.
	a, b := points[3], points[4]
	if math.Abs(a.X+b.X) > eps || math.Abs(a.Z+b.Z) > eps {
		t.Fatalf("truncated ring candles %v and %v are not opposite", a, b)
	}
}

func TestRingsOffsetsSuccessiveRings(t *testing.T) {
	n := 4
	points := Rings(n)
	// Ring 1 starts at angle pi * 1 / ringCount = pi/2.
	phi := math.Atan2(points[1].Z, points[1].X)
	if math.Abs(phi-math.Pi/2) > eps {
		t.Fatalf("ring 1 origin angle = %f, want pi/2", phi)
	}
}

func TestRingsStayInsideCake(t *testing.T) {
	for n := 1; n <= 200; n++ {
		for i, p := range Rings(n) {
			if r := math.Hypot(p.X, p.Z); r > outerRadius+eps {
				t.Fatalf("Rings(%d)[%d] radius %f exceeds %f", n, i, r, outerRadius)
			}
		}
	}
}

func TestArrangeIsPermutationOfRings(t *testing.T) {
	n := 26
	rings, arranged := Rings(n), Arrange(n)

	less := func(ps []Point) func(i, j int) bool {
		return func(i, j int) bool {
			if ps[i].X != ps[j].X {
				return ps[i].X < ps[j].X
			}
			return ps[i].Z < ps[j].Z
		}
	}
	sort.Slice(rings, less(rings))
	sort.Slice(arranged, less(arranged))

	for i := range rings {
		if rings[i] != arranged[i] {
			t.Fatalf("Arrange(%d) is not a permutation of Rings(%d)", n, n)
		}
	}
}

func TestArrangeDecorrelatesIndexOrder(t *testing.T) {
	n := 26
	rings, arranged := Rings(n), Arrange(n)
	same := 0
	for i := range rings {
		if rings[i] == arranged[i] {
			same++
		}
	}
	if same == n {
		t.Fatalf("Arrange(%d) left ring order untouched", n)
	}
}
