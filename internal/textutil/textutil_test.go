package textutil_test

import (
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/edgard/newsradar/internal/textutil"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and trims",
			input:    "  Hello World  ",
			expected: "hello world",
		},
		{
			name:     "collapses punctuation runs",
			input:    "Breaking: X -- buyback!!! announced",
			expected: "breaking x buyback announced",
		},
		{
			name:     "keeps tickers hashtags mentions",
			input:    "$AAPL #markets @trader",
			expected: "$aapl #markets @trader",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "cyrillic preserved",
			input:    "Срочно! Байбек.",
			expected: "срочно байбек",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := textutil.Normalize(tc.input); got != tc.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestShingle(t *testing.T) {
	t.Parallel()

	t.Run("empty text yields empty set", func(t *testing.T) {
		t.Parallel()
		if got := textutil.Shingle("", textutil.ShingleSize); len(got) != 0 {
			t.Errorf("expected empty set, got %v", got)
		}
	})

	t.Run("short text yields whole-token shingle", func(t *testing.T) {
		t.Parallel()
		got := textutil.Shingle("one two three", 4)
		if len(got) != 1 {
			t.Fatalf("expected 1 shingle, got %d", len(got))
		}
		if _, ok := got["one two three"]; !ok {
			t.Errorf("missing whole-token shingle in %v", got)
		}
	})

	t.Run("n-grams of normalized tokens", func(t *testing.T) {
		t.Parallel()
		got := textutil.Shingle("a b c d e", 4)
		want := []string{"a b c d", "b c d e"}
		if len(got) != len(want) {
			t.Fatalf("expected %d shingles, got %d: %v", len(want), len(got), got)
		}
		for _, s := range want {
			if _, ok := got[s]; !ok {
				t.Errorf("missing shingle %q", s)
			}
		}
	})
}

func TestTokenSetRatio(t *testing.T) {
	t.Parallel()

	t.Run("identical texts score 1", func(t *testing.T) {
		t.Parallel()
		if got := textutil.TokenSetRatio("company announces buyback", "company announces buyback"); got != 1 {
			t.Errorf("expected 1, got %v", got)
		}
	})

	t.Run("word order does not matter", func(t *testing.T) {
		t.Parallel()
		if got := textutil.TokenSetRatio("buyback company announces", "company announces buyback"); got != 1 {
			t.Errorf("expected 1, got %v", got)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		t.Parallel()
		a, b := "alpha beta gamma delta", "alpha beta other words"
		if textutil.TokenSetRatio(a, b) != textutil.TokenSetRatio(b, a) {
			t.Error("ratio is not symmetric")
		}
	})

	t.Run("known partial overlap", func(t *testing.T) {
		t.Parallel()
		// 2 shared tokens out of 4+4 unique tokens.
		got := textutil.TokenSetRatio("a b c d", "a b x y")
		if math.Abs(got-0.5) > 1e-9 {
			t.Errorf("expected 0.5, got %v", got)
		}
	})

	t.Run("disjoint texts score 0", func(t *testing.T) {
		t.Parallel()
		if got := textutil.TokenSetRatio("one two", "three four"); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})

	t.Run("empty input scores 0", func(t *testing.T) {
		t.Parallel()
		if got := textutil.TokenSetRatio("", "something"); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})
}

func TestExtractEntities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []string
		exclude []string
	}{
		{
			name:  "dollar ticker",
			input: "Big move in $AAPL today",
			want:  []string{"$AAPL"},
		},
		{
			name:  "hashtag and mention",
			input: "#markets update from @trader",
			want:  []string{"markets", "trader"},
		},
		{
			name:  "currency pair and isin",
			input: "Watch USD/EUR and US0378331005 closely",
			want:  []string{"USD/EUR", "US0378331005"},
		},
		{
			name:    "upper tokens but not bare short digits",
			input:   "OPEC meets at 9",
			want:    []string{"OPEC"},
			exclude: []string{"9"},
		},
		{
			name:  "numbers and percentages",
			input: "Revenue up 12.5% to 4500",
			want:  []string{"12.5%", "4500"},
		},
		{
			name:  "sector keywords",
			input: "нефть дорожает, банк снижает прогноз",
			want:  []string{"energy", "finance"},
		},
		{
			name:  "country names",
			input: "США вводят новые пошлины",
			want:  []string{"Сша"},
		},
		{
			name:    "length filter drops singletons",
			input:   "x y z",
			exclude: []string{"x", "y", "z"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := textutil.ExtractEntities(tc.input)
			for _, want := range tc.want {
				if !slices.Contains(got, want) {
					t.Errorf("ExtractEntities(%q) = %v, missing %q", tc.input, got, want)
				}
			}
			for _, excl := range tc.exclude {
				if slices.Contains(got, excl) {
					t.Errorf("ExtractEntities(%q) = %v, should not contain %q", tc.input, got, excl)
				}
			}
			if !slices.IsSorted(got) {
				t.Errorf("entities are not sorted: %v", got)
			}
		})
	}
}

func TestMergeEntities(t *testing.T) {
	t.Parallel()

	got := textutil.MergeEntities(
		[]string{"beta", "alpha"},
		[]string{"alpha", "gamma"},
		nil,
	)
	want := []string{"alpha", "beta", "gamma"}
	if !slices.Equal(got, want) {
		t.Errorf("MergeEntities = %v, want %v", got, want)
	}
}

func TestHashKey(t *testing.T) {
	t.Parallel()

	key := textutil.HashKey("some canonical text")
	if len(key) != 16 {
		t.Errorf("expected 16-character key, got %q (len %d)", key, len(key))
	}
	if key != textutil.HashKey("some canonical text") {
		t.Error("HashKey is not deterministic")
	}
	if strings.ToLower(key) != key {
		t.Errorf("expected lowercase hex, got %q", key)
	}
}
