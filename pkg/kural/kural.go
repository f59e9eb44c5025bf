package kural

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Count is the number of couplets in the Thirukkural.
const Count = 1330

// ErrNotFound is returned when a couplet number has no record.
var ErrNotFound = errors.New("kural not found")

// Kural is a single couplet with its taxonomy and commentaries.
type Kural struct {
	Number          int      `json:"number"`
	Paal            string   `json:"paal"`
	Iyal            string   `json:"iyal"`
	Adhigaram       string   `json:"adhigaram"`
	Line1           string   `json:"line1_ta"`
	Line2           string   `json:"line2_ta"`
	MeaningTamil    string   `json:"meaning_ta"`
	Transliteration string   `json:"transliteration_en"`
	MeaningEnglish  string   `json:"meaning_en"`
	Varadarajan     string   `json:"mv"` // Mu. Varadarajan
	SolomonPappaiah string   `json:"sp"`
	Karunanidhi     string   `json:"mk"` // Kalaignar M. Karunanidhi
	Tags            []string `json:"tags,omitempty"`
}

// Chapter describes one adhigaram and the range of couplets it holds.
type Chapter struct {
	Number          int    `json:"number"`
	Name            string `json:"name"`
	Translation     string `json:"translation"`
	Transliteration string `json:"transliteration"`
	Start           int    `json:"start"`
	End             int    `json:"end"`
}

// Document is the on-disk shape written by the import step.
type Document struct {
	Kurals   []Kural   `json:"kurals"`
	Chapters []Chapter `json:"chapters,omitempty"`
}

// Dataset is the read-only, number-ordered collection of couplets.
type Dataset struct {
	kurals   []Kural
	byNumber map[int]int
	chapters map[string]Chapter
}

// Load reads a dataset file from disk.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ds, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

// Parse decodes either a bare array of couplets or a Document wrapper.
func Parse(r io.Reader) (*Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(raw))
	var doc Document
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &doc.Kurals); err != nil {
			return nil, fmt.Errorf("decode kural array: %w", err)
		}
	} else if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode kural document: %w", err)
	}
	return New(doc.Kurals, doc.Chapters)
}

// New builds a Dataset, validating that numbers are unique and in range.
func New(kurals []Kural, chapters []Chapter) (*Dataset, error) {
	sorted := make([]Kural, len(kurals))
	copy(sorted, kurals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	ds := &Dataset{
		kurals:   sorted,
		byNumber: make(map[int]int, len(sorted)),
		chapters: make(map[string]Chapter, len(chapters)),
	}
	for i, k := range sorted {
		if !ValidNumber(k.Number) {
			return nil, fmt.Errorf("kural number %d out of range 1..%d", k.Number, Count)
		}
		if _, dup := ds.byNumber[k.Number]; dup {
			return nil, fmt.Errorf("duplicate kural number %d", k.Number)
		}
		ds.byNumber[k.Number] = i
	}
	for _, c := range chapters {
		ds.chapters[c.Name] = c
	}
	return ds, nil
}

// ValidNumber reports whether n is a couplet number.
func ValidNumber(n int) bool { return n >= 1 && n <= Count }

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.kurals) }

// All returns the records in number order. The slice must not be modified.
func (d *Dataset) All() []Kural { return d.kurals }

// Lookup returns the couplet with the given number.
func (d *Dataset) Lookup(n int) (Kural, error) {
	i, ok := d.byNumber[n]
	if !ok {
		return Kural{}, fmt.Errorf("kural %d: %w", n, ErrNotFound)
	}
	return d.kurals[i], nil
}

// LookupString resolves a number taken from a URL path segment.
func (d *Dataset) LookupString(s string) (Kural, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Kural{}, fmt.Errorf("kural %q: %w", s, ErrNotFound)
	}
	return d.Lookup(n)
}

// Prev returns the preceding couplet number in the dataset, or 0 when n is
// the first or not present.
func (d *Dataset) Prev(n int) int {
	i, ok := d.byNumber[n]
	if !ok || i == 0 {
		return 0
	}
	return d.kurals[i-1].Number
}

// Next returns the following couplet number in the dataset, or 0 when n is
// the last or not present.
func (d *Dataset) Next(n int) int {
	i, ok := d.byNumber[n]
	if !ok || i == len(d.kurals)-1 {
		return 0
	}
	return d.kurals[i+1].Number
}

// Chapter returns the metadata for an adhigaram, if the import step recorded it.
func (d *Dataset) Chapter(name string) (Chapter, bool) {
	c, ok := d.chapters[name]
	return c, ok
}

// Select returns the records for the given numbers in number order, skipping unknown ones.
func (d *Dataset) Select(numbers []int) []Kural {
	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)
	out := make([]Kural, 0, len(sorted))
	last := 0
	for _, n := range sorted {
		if n == last {
			continue
		}
		last = n
		if i, ok := d.byNumber[n]; ok {
			out = append(out, d.kurals[i])
		}
	}
	return out
}
