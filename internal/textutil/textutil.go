// Package textutil provides the pure text primitives used by the dedup
// clusterer and the metrics engine: canonicalization, token shingles,
// entity extraction, and token-set similarity. Patterns are tuned for
// finance and markets news.
package textutil

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	// ShingleSize is the token n-gram width used for overlap similarity.
	ShingleSize = 4

	minEntityLen = 2
	maxEntityLen = 40
)

var (
	nonWordRE = regexp.MustCompile(`[^\p{L}\p{N}_$#@]+`)
	hashtagRE = regexp.MustCompile(`[#@][\p{L}\p{N}_]{2,32}`)
	tickerRE  = regexp.MustCompile(`\$[A-Z]{1,5}(?:\.[A-Z]{1,2})?\b`)
	isinRE    = regexp.MustCompile(`\b[A-Z]{2}[A-Z0-9]{9}[0-9]\b`)
	pairRE    = regexp.MustCompile(`\b[A-Z]{3}/[A-Z]{3}\b`)

	upperTokenRE = regexp.MustCompile(`^[A-Z0-9А-ЯЁ]{2,10}$`)
	digitsRE     = regexp.MustCompile(`^[0-9]+$`)
	numberRE     = regexp.MustCompile(`^[0-9]{2,}$`)
	percentRE    = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)?%$`)

	ruTitle = cases.Title(language.Russian)
)

// sectorKeywords maps a sector entity to the lowercase substrings that
// signal it.
var sectorKeywords = map[string][]string{
	"energy":  {"нефть", "газ", "oil", "gas"},
	"tech":    {"it", "tech", "ai", "софт", "полупроводник"},
	"finance": {"банк", "bank", "фин", "кредит"},
	"defense": {"оборон", "defense"},
}

// countries is the fixed list matched case-insensitively against tokens.
var countries = []string{
	"США", "Россия", "Китай", "Германия", "Франция",
	"Великобритания", "Япония", "Индия", "Бразилия",
}

// Normalize canonicalizes text for comparison: Unicode NFKC, lowercase,
// runs of characters outside word/$/#/@ collapsed to single spaces, trimmed.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ToLower(text)
	return strings.TrimSpace(nonWordRE.ReplaceAllString(text, " "))
}

// Tokens returns the whitespace-separated tokens of the normalized text.
func Tokens(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

// Shingle returns the set of token n-grams of the normalized text. When
// the text has fewer tokens than the shingle size, the whole token string
// is returned as a single shingle; empty text yields an empty set.
func Shingle(text string, size int) map[string]struct{} {
	tokens := Tokens(text)
	shingles := make(map[string]struct{})
	if len(tokens) == 0 {
		return shingles
	}
	if len(tokens) < size {
		shingles[strings.Join(tokens, " ")] = struct{}{}
		return shingles
	}
	for i := 0; i+size <= len(tokens); i++ {
		shingles[strings.Join(tokens[i:i+size], " ")] = struct{}{}
	}
	return shingles
}

// TokenSetRatio is a symmetric similarity in [0,1] over the unique token
// sets of two normalized texts. Word order and repetition do not affect
// the result.
func TokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(setA)+len(setB))
}

// ShingleOverlap is the Jaccard overlap of the shingle sets of two texts.
func ShingleOverlap(a, b string) float64 {
	setA := Shingle(a, ShingleSize)
	setB := Shingle(b, ShingleSize)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// ExtractEntities pulls market-relevant entities out of raw (unnormalized)
// text: hashtags and mentions, upper-case tokens, ticker-like codes,
// sector keyword hits, country names, and bare numbers or percentages.
// The result is filtered to 2-40 characters and sorted.
func ExtractEntities(text string) []string {
	entities := make(map[string]struct{})

	for _, tag := range hashtagRE.FindAllString(text, -1) {
		entities[strings.TrimLeft(tag, "#@")] = struct{}{}
	}
	for _, ticker := range tickerRE.FindAllString(text, -1) {
		entities[ticker] = struct{}{}
	}
	for _, code := range isinRE.FindAllString(text, -1) {
		entities[code] = struct{}{}
	}
	for _, pair := range pairRE.FindAllString(text, -1) {
		entities[pair] = struct{}{}
	}

	for _, token := range scanTokens(text) {
		if upperTokenRE.MatchString(token) && !digitsRE.MatchString(token) {
			entities[token] = struct{}{}
		}
		if numberRE.MatchString(token) || percentRE.MatchString(token) {
			entities[token] = struct{}{}
		}
		for _, country := range countries {
			if strings.EqualFold(token, country) {
				entities[ruTitle.String(strings.ToLower(country))] = struct{}{}
			}
		}
	}

	lowered := strings.ToLower(text)
	for sector, keywords := range sectorKeywords {
		for _, keyword := range keywords {
			if strings.Contains(lowered, keyword) {
				entities[sector] = struct{}{}
				break
			}
		}
	}

	result := make([]string, 0, len(entities))
	for entity := range entities {
		if n := utf8.RuneCountInString(entity); n >= minEntityLen && n <= maxEntityLen {
			result = append(result, entity)
		}
	}
	sort.Strings(result)
	return result
}

// MergeEntities returns the deterministic sorted union of entity lists.
func MergeEntities(collections ...[]string) []string {
	bag := make(map[string]struct{})
	for _, coll := range collections {
		for _, entity := range coll {
			bag[entity] = struct{}{}
		}
	}
	merged := make([]string, 0, len(bag))
	for entity := range bag {
		merged = append(merged, entity)
	}
	sort.Strings(merged)
	return merged
}

// HashKey derives a stable 16-hex-character digest of the given text.
func HashKey(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// scanTokens splits raw text into candidate tokens for entity scanning,
// keeping %, . and / inside tokens so that percentages and currency pairs
// survive the split.
func scanTokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
		switch r {
		case '%', '.', '/':
			return false
		}
		return true
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if token := strings.Trim(field, "./"); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range Tokens(text) {
		set[token] = struct{}{}
	}
	return set
}
