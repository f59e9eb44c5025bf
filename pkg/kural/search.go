package kural

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultSearchLimit bounds the couplet suggestions.
	DefaultSearchLimit = 5
	// chapterSuggestions bounds the adhigaram suggestions.
	chapterSuggestions = 3
	minQueryRunes      = 2
)

// Normalize prepares text for matching: NFC composition (Tamil vowel signs have
// multiple encodings), case folding for Latin script and collapsed whitespace.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	// A Caser is stateful and must not be shared between goroutines.
	s = cases.Fold().String(s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// SearchOptions restricts a search.
type SearchOptions struct {
	// Adhigaram limits couplet matches to one chapter.
	Adhigaram string
	// Limit caps the couplet results; zero means DefaultSearchLimit.
	Limit int
}

// SearchResult holds couplet matches and chapter suggestions.
type SearchResult struct {
	Query      string   `json:"query"`
	Kurals     []Kural  `json:"kurals"`
	Adhigarams []string `json:"adhigarams"`
	// Ignored is set when the query was too short to search.
	Ignored bool `json:"ignored,omitempty"`
}

// Empty reports whether nothing matched.
func (r SearchResult) Empty() bool { return len(r.Kurals) == 0 && len(r.Adhigarams) == 0 }

// Search matches the query against number, verse lines, transliteration,
// meanings and chapter name. An exact couplet number always comes first.
func (d *Dataset) Search(query string, opts SearchOptions) SearchResult {
	q := Normalize(query)
	res := SearchResult{Query: strings.TrimSpace(query)}
	if q == "" {
		return res
	}
	exact, numeric := parseNumber(q)
	if utf8.RuneCountInString(q) < minQueryRunes && !numeric && opts.Adhigaram == "" {
		res.Ignored = true
		return res
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if k, err := d.Lookup(exact); numeric && err == nil && (opts.Adhigaram == "" || k.Adhigaram == opts.Adhigaram) {
		res.Kurals = append(res.Kurals, k)
	}
	for _, k := range d.kurals {
		if len(res.Kurals) >= limit {
			break
		}
		if numeric && k.Number == exact {
			continue
		}
		if opts.Adhigaram != "" && k.Adhigaram != opts.Adhigaram {
			continue
		}
		if matchKural(k, q) {
			res.Kurals = append(res.Kurals, k)
		}
	}

	res.Adhigarams = d.searchChapters(q)
	return res
}

// SearchChapters filters the chapter list by name, English title or transliteration.
func (d *Dataset) SearchChapters(query string) []string {
	q := Normalize(query)
	if q == "" {
		return d.Adhigarams("", "")
	}
	var out []string
	for _, name := range d.Adhigarams("", "") {
		if d.chapterMatches(name, q) {
			out = append(out, name)
		}
	}
	return out
}

func (d *Dataset) searchChapters(q string) []string {
	var out []string
	for _, name := range d.Adhigarams("", "") {
		if len(out) >= chapterSuggestions {
			break
		}
		if d.chapterMatches(name, q) {
			out = append(out, name)
		}
	}
	return out
}

func (d *Dataset) chapterMatches(name, q string) bool {
	keys := []string{name}
	if c, ok := d.chapters[name]; ok {
		keys = append(keys, c.Translation, c.Transliteration)
	}
	return strings.Contains(Normalize(strings.Join(keys, " ")), q)
}

func matchKural(k Kural, q string) bool {
	if strings.Contains(strconv.Itoa(k.Number), q) {
		return true
	}
	for _, field := range []string{k.Line1, k.Line2, k.Transliteration, k.MeaningEnglish, k.MeaningTamil, k.Adhigaram} {
		if field != "" && strings.Contains(Normalize(field), q) {
			return true
		}
	}
	return false
}

func parseNumber(q string) (int, bool) {
	for _, r := range q {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(q)
	if err != nil {
		return 0, false
	}
	return n, true
}
