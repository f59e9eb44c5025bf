// Package kuraltest builds synthetic datasets for tests in other packages.
package kuraltest

import (
	"fmt"
	"testing"

	"github.com/japaniel/thirukkural/pkg/kural"
)

// Division names as they appear in the real dataset.
const (
	Aram    = "அறத்துப்பால்"
	Porul   = "பொருட்பால்"
	Kamam   = "காமத்துப்பால்"
	perIyal = 7
)

// Kurals returns all 1330 couplets with a deterministic taxonomy: ten couplets
// per chapter, seven chapters per section, divisions split at 380 and 1080.
func Kurals() []kural.Kural {
	out := make([]kural.Kural, 0, kural.Count)
	for n := 1; n <= kural.Count; n++ {
		out = append(out, Kural(n))
	}
	return out
}

// Kural returns the synthetic record for n.
func Kural(n int) kural.Kural {
	paal, meaning := Aram, "On virtue and the household"
	switch {
	case n > 1080:
		paal, meaning = Kamam, "On love and longing"
	case n > 380:
		paal, meaning = Porul, "On wealth and statecraft"
	}
	chapter := (n-1)/10 + 1
	return kural.Kural{
		Number:          n,
		Paal:            paal,
		Iyal:            fmt.Sprintf("%s இயல் %d", paal, (chapter-1)/perIyal+1),
		Adhigaram:       ChapterName(chapter),
		Line1:           "அகர முதல எழுத்தெல்லாம் ஆதி",
		Line2:           "பகவன் முதற்றே உலகு.",
		MeaningTamil:    "எழுத்துக்கள் எல்லாம் அகரத்தை அடிப்படையாக கொண்டிருக்கின்றன.",
		Transliteration: "Akara Mudhala Ezhuththellaam",
		MeaningEnglish:  meaning,
		Varadarajan:     "மு.வ உரை",
		SolomonPappaiah: "சாலமன் பாப்பையா உரை",
		Karunanidhi:     "கலைஞர் உரை",
	}
}

// ChapterName is the adhigaram name used for chapter c.
func ChapterName(c int) string { return fmt.Sprintf("அதிகாரம் %d", c) }

// Dataset builds the full synthetic dataset or fails the test.
func Dataset(tb testing.TB) *kural.Dataset {
	tb.Helper()
	ds, err := kural.New(Kurals(), nil)
	if err != nil {
		tb.Fatalf("build dataset: %v", err)
	}
	return ds
}
