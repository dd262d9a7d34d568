// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package subres

import "testing"

// countTexels returns the number of (aspect-bit, layer, mip)
// triples covered by r, used to check that clipping neither
// drops nor double-counts texels.
func countTexels(r Range) int {
	n := 0
	for a := uint8(1); a != 0; a <<= 1 {
		if r.Aspect&a == 0 {
			continue
		}
		n += int(r.LayerHi-r.LayerLo) * int(r.MipHi-r.MipLo)
	}
	return n
}

func overlaps(a, b Range) bool {
	_, ok := a.Intersect(b)
	return ok
}

// TestClipReconstructsWhole is property P5: union(intersect,
// complements) == lhs, and the pieces are pairwise disjoint,
// with at most five complements.
func TestClipReconstructsWhole(t *testing.T) {
	cases := []struct{ a, b Range }{
		{Full(AspectColor, 4, 3), Full(AspectColor, 4, 3)},
		{Full(AspectColor, 8, 5), Range{Aspect: AspectColor, LayerLo: 2, LayerHi: 4, MipLo: 1, MipHi: 3}},
		{Full(AspectDepth|AspectStencil, 1, 1), Range{Aspect: AspectDepth, LayerLo: 0, LayerHi: 1, MipLo: 0, MipHi: 1}},
		{Range{Aspect: AspectColor, LayerLo: 0, LayerHi: 10, MipLo: 0, MipHi: 10}, Range{Aspect: AspectColor, LayerLo: 3, LayerHi: 7, MipLo: 3, MipHi: 7}},
	}
	for i, c := range cases {
		inter, leftovers, ok := c.a.Clip(c.b)
		if !ok {
			t.Fatalf("case %d: expected overlap", i)
		}
		if len(leftovers) > 5 {
			t.Fatalf("case %d: %d leftovers, want <= 5", i, len(leftovers))
		}
		total := countTexels(inter)
		for j, p := range leftovers {
			total += countTexels(p)
			for k, q := range leftovers {
				if j == k {
					continue
				}
				if overlaps(p, q) {
					t.Fatalf("case %d: leftover %d overlaps leftover %d", i, j, k)
				}
			}
			if overlaps(p, inter) {
				t.Fatalf("case %d: leftover %d overlaps intersection", i, j)
			}
		}
		if want := countTexels(c.a); total != want {
			t.Fatalf("case %d: reconstructed %d texels, want %d", i, total, want)
		}
	}
}

func TestClipDisjoint(t *testing.T) {
	a := Range{Aspect: AspectColor, LayerLo: 0, LayerHi: 1, MipLo: 0, MipHi: 1}
	b := Range{Aspect: AspectColor, LayerLo: 1, LayerHi: 2, MipLo: 0, MipHi: 1}
	if _, _, ok := a.Clip(b); ok {
		t.Fatal("expected disjoint ranges to report no overlap")
	}
	c := Range{Aspect: AspectDepth, LayerLo: 0, LayerHi: 1, MipLo: 0, MipHi: 1}
	if _, _, ok := a.Clip(c); ok {
		t.Fatal("expected disjoint aspects to report no overlap")
	}
}
