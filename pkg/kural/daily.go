package kural

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// DailyIndex derives a stable index for the given day: a 31-multiplier string
// hash of the UTC date in YYYY-MM-DD form, wrapped to 32 bits.
func DailyIndex(day time.Time, n int) int {
	if n <= 0 {
		return 0
	}
	var h int32
	for _, c := range day.UTC().Format("2006-01-02") {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % int64(n))
}

// Daily returns the couplet of the day.
func (d *Dataset) Daily(day time.Time) (Kural, bool) {
	if len(d.kurals) == 0 {
		return Kural{}, false
	}
	return d.kurals[DailyIndex(day, len(d.kurals))], true
}

// Random picks count couplets. Repeats are possible, as on the home page grid.
func (d *Dataset) Random(rng *rand.Rand, count int) []Kural {
	if len(d.kurals) == 0 || count <= 0 {
		return nil
	}
	out := make([]Kural, count)
	for i := range out {
		out[i] = d.kurals[rng.IntN(len(d.kurals))]
	}
	return out
}

// ShareText is the plain text copied to the clipboard from the detail page.
func ShareText(k Kural) string {
	var b strings.Builder
	fmt.Fprintf(&b, "திருக்குறள் %d\n", k.Number)
	fmt.Fprintf(&b, "அதிகாரம்: %s\n\n", k.Adhigaram)
	fmt.Fprintf(&b, "%s\n%s\n\n", k.Line1, k.Line2)
	fmt.Fprintf(&b, "விளக்கம்:\n%s\n\n", k.Varadarajan)
	fmt.Fprintf(&b, "English Explanation:\n%s", k.MeaningEnglish)
	return b.String()
}
