package similarity

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompareEdgeCases(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "", 0},
		{"", "abc", 0},
		{"thriller", "thriller", 1},
	}
	for _, tc := range tests {
		if got := Compare(tc.a, tc.b); got != tc.want {
			t.Errorf("Compare(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCompareWeighting(t *testing.T) {
	// "kitten" -> "sitting" is distance 3 over 7 runes; no shared tokens.
	got := Compare("kitten", "sitting")
	want := 0.6 * (4.0 / 7.0)
	if !approx(got, want) {
		t.Fatalf("Compare(kitten, sitting) = %v, want %v", got, want)
	}

	// one shared token out of three, distance 1 over 12 runes
	got = Compare("billie jean", "billie jeans")
	lev := Levenshtein("billie jean", "billie jeans")
	if !approx(lev, 11.0/12.0) {
		t.Fatalf("Levenshtein = %v, want %v", lev, 11.0/12.0)
	}
	want = 0.6*lev + 0.4*(1.0/3.0)
	if !approx(got, want) {
		t.Fatalf("Compare = %v, want %v", got, want)
	}
}

func TestCompareSymmetricAndBounded(t *testing.T) {
	pairs := [][2]string{
		{"michael jackson", "michael jordan"},
		{"the beatles", "beatles"},
		{"café", "cafe"},
		{"a b c", "c b a"},
		{"x", "yyyyyyyy"},
	}
	for _, p := range pairs {
		ab := Compare(p[0], p[1])
		ba := Compare(p[1], p[0])
		if !approx(ab, ba) {
			t.Errorf("Compare not symmetric for %q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Errorf("Compare(%q, %q) = %v out of range", p[0], p[1], ab)
		}
	}
}

func TestCompareDistinctWithoutSharedTokensBelowOne(t *testing.T) {
	if got := Compare("alpha", "beta"); got >= 1 {
		t.Fatalf("expected < 1, got %v", got)
	}
}

func TestJaccardTokenOrderInsensitive(t *testing.T) {
	if got := Jaccard("a b c", "c b a"); got != 1 {
		t.Fatalf("Jaccard = %v, want 1", got)
	}
	if got := Jaccard("   ", " "); got != 0 {
		t.Fatalf("Jaccard of blank strings = %v, want 0", got)
	}
}

func TestLevenshteinCountsRunes(t *testing.T) {
	if got := Levenshtein("café", "cafe"); !approx(got, 0.75) {
		t.Fatalf("Levenshtein(café, cafe) = %v, want 0.75", got)
	}
}
