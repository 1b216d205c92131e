package fuzzy

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "python", b: "python", want: 100},
		{name: "case insensitive", a: "Python", b: "pyTHON", want: 100},
		{name: "both empty", a: "", b: "", want: 100},
		{name: "one empty", a: "go", b: "", want: 0},
		{name: "single edit", a: "pithon", b: "python", want: 100 * (1 - 1.0/6)},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Ratio(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRatioSymmetric(t *testing.T) {
	t.Parallel()
	if Ratio("react", "redux") != Ratio("redux", "react") {
		t.Error("Ratio should be symmetric")
	}
}

func TestPartialRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "substring scores full", a: "node", b: "nodejs", want: 100},
		{name: "order independent", a: "nodejs", b: "node", want: 100},
		{name: "equal lengths fall back to ratio", a: "abc", b: "abd", want: Ratio("abc", "abd")},
		{name: "term inside phrase", a: "docker", b: "deploy with docker now", want: 100},
		{name: "both empty", a: "", b: "", want: 100},
		{name: "one empty", a: "", b: "go", want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PartialRatio(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("PartialRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestExtractTop(t *testing.T) {
	t.Parallel()

	candidates := []string{"python", "pytorch", "typescript", "javascript"}

	t.Run("orders by descending score", func(t *testing.T) {
		t.Parallel()
		got := ExtractTop("python", candidates, 10, 40, Ratio)
		if len(got) == 0 || got[0].Term != "python" {
			t.Fatalf("ExtractTop = %v, want python first", got)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Score > got[i-1].Score {
				t.Errorf("results not sorted: %v", got)
			}
		}
	})

	t.Run("respects limit", func(t *testing.T) {
		t.Parallel()
		got := ExtractTop("python", candidates, 1, 0, Ratio)
		if len(got) != 1 {
			t.Errorf("got %d matches, want 1", len(got))
		}
	})

	t.Run("cutoff filters", func(t *testing.T) {
		t.Parallel()
		got := ExtractTop("python", candidates, 10, 99, Ratio)
		if len(got) != 1 || got[0].Term != "python" {
			t.Errorf("got %v, want only the exact match", got)
		}
	})

	t.Run("deterministic over repeated calls", func(t *testing.T) {
		t.Parallel()
		first := ExtractTop("script", candidates, 10, 30, PartialRatio)
		for i := 0; i < 20; i++ {
			again := ExtractTop("script", candidates, 10, 30, PartialRatio)
			if len(again) != len(first) {
				t.Fatalf("run %d: length changed: %v vs %v", i, again, first)
			}
			for j := range again {
				if again[j] != first[j] {
					t.Fatalf("run %d: order changed: %v vs %v", i, again, first)
				}
			}
		}
	})

	t.Run("nil on non-positive limit", func(t *testing.T) {
		t.Parallel()
		if got := ExtractTop("x", candidates, 0, 0, Ratio); got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})
}

func TestBest(t *testing.T) {
	t.Parallel()

	m, ok := Best("pyton", []string{"python", "ruby"}, 75, Ratio)
	if !ok || m.Term != "python" {
		t.Errorf("Best = %v, %v; want python, true", m, ok)
	}

	if _, ok := Best("zzz", []string{"python", "ruby"}, 75, Ratio); ok {
		t.Error("Best matched below cutoff")
	}
}

func TestBestCutoffBoundary(t *testing.T) {
	t.Parallel()

	// One edit over four characters scores exactly 75; two edits over five
	// score 60. The cutoff is inclusive, so the first matches and the
	// second does not.
	if got := Ratio("ruut", "rust"); !almostEqual(got, 75) {
		t.Fatalf("Ratio(ruut, rust) = %v, want 75", got)
	}
	if got := Ratio("ruxxt", "rust"); !almostEqual(got, 60) {
		t.Fatalf("Ratio(ruxxt, rust) = %v, want 60", got)
	}

	if m, ok := Best("ruut", []string{"rust"}, 75, Ratio); !ok || m.Term != "rust" {
		t.Errorf("Best at the cutoff = %v, %v; want rust, true", m, ok)
	}
	if m, ok := Best("ruxxt", []string{"rust"}, 75, Ratio); ok {
		t.Errorf("Best below the cutoff matched %v", m)
	}
}

func TestPhoneticTop(t *testing.T) {
	t.Parallel()

	vocabulary := []string{"kubernetes", "javascript", "postgresql", "redis"}

	t.Run("finds sound-alike term", func(t *testing.T) {
		t.Parallel()
		got := PhoneticTop("koobernetes", vocabulary, 3)
		if len(got) == 0 || got[0].Term != "kubernetes" {
			t.Errorf("PhoneticTop = %v, want kubernetes first", got)
		}
	})

	t.Run("skips exact matches", func(t *testing.T) {
		t.Parallel()
		for _, m := range PhoneticTop("redis", vocabulary, 3) {
			if m.Term == "redis" {
				t.Error("exact match should not be suggested")
			}
		}
	})

	t.Run("empty query", func(t *testing.T) {
		t.Parallel()
		if got := PhoneticTop("   ", vocabulary, 3); got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})

	t.Run("non-positive limit", func(t *testing.T) {
		t.Parallel()
		if got := PhoneticTop("redis", vocabulary, 0); got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})

	t.Run("unrelated sounds excluded", func(t *testing.T) {
		t.Parallel()
		for _, m := range PhoneticTop("banana", vocabulary, 5) {
			if m.Score < 70 {
				t.Errorf("match %v below floor", m)
			}
		}
	})
}
