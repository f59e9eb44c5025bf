package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/japaniel/thirukkural/pkg/kural"
)

// RawKural matches an entry of the upstream thirukkural.json.
type RawKural struct {
	Number           int    `json:"Number"`
	Line1            string `json:"Line1"`
	Line2            string `json:"Line2"`
	Translation      string `json:"Translation"`
	MV               string `json:"mv"`
	SP               string `json:"sp"`
	MK               string `json:"mk"`
	Explanation      string `json:"explanation"`
	Couplet          string `json:"couplet"`
	Transliteration1 string `json:"transliteration1"`
	Transliteration2 string `json:"transliteration2"`
}

type rawFile struct {
	Kural []RawKural `json:"kural"`
}

// Section is a paal in detail.json.
type Section struct {
	Name            string `json:"name"`
	Transliteration string `json:"transliteration"`
	Translation     string `json:"translation"`
	Number          int    `json:"number"`
	ChapterGroup    struct {
		Detail []ChapterGroup `json:"detail"`
	} `json:"chapterGroup"`
}

// ChapterGroup is an iyal in detail.json.
type ChapterGroup struct {
	Name            string `json:"name"`
	Transliteration string `json:"transliteration"`
	Translation     string `json:"translation"`
	Number          int    `json:"number"`
	Chapters        struct {
		Detail []ChapterDetail `json:"detail"`
	} `json:"chapters"`
}

// ChapterDetail is an adhigaram in detail.json with its couplet range.
type ChapterDetail struct {
	Name            string `json:"name"`
	Transliteration string `json:"transliteration"`
	Translation     string `json:"translation"`
	Number          int    `json:"number"`
	Start           int    `json:"start"`
	End             int    `json:"end"`
}

// Detail is the taxonomy tree from detail.json.
type Detail struct {
	Sections []Section
}

type detailFile []struct {
	Section struct {
		Detail []Section `json:"detail"`
	} `json:"section"`
}

// DecodeKurals reads the upstream couplet file.
func DecodeKurals(r io.Reader) ([]RawKural, error) {
	var f rawFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode kurals: %w", err)
	}
	if len(f.Kural) == 0 {
		return nil, fmt.Errorf("decode kurals: no entries")
	}
	return f.Kural, nil
}

// DecodeDetail reads the upstream taxonomy file.
func DecodeDetail(r io.Reader) (Detail, error) {
	var f detailFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return Detail{}, fmt.Errorf("decode detail: %w", err)
	}
	if len(f) == 0 {
		return Detail{}, fmt.Errorf("decode detail: empty")
	}
	return Detail{Sections: f[0].Section.Detail}, nil
}

type placement struct {
	paal, iyal string
	chapter    ChapterDetail
}

func (d Detail) locate(n int) (placement, bool) {
	for _, s := range d.Sections {
		for _, g := range s.ChapterGroup.Detail {
			for _, c := range g.Chapters.Detail {
				if n >= c.Start && n <= c.End {
					return placement{paal: s.Name, iyal: g.Name, chapter: c}, true
				}
			}
		}
	}
	return placement{}, false
}

// Chapters flattens the adhigaram metadata in order.
func (d Detail) Chapters() []kural.Chapter {
	var out []kural.Chapter
	for _, s := range d.Sections {
		for _, g := range s.ChapterGroup.Detail {
			for _, c := range g.Chapters.Detail {
				out = append(out, kural.Chapter{
					Number:          c.Number,
					Name:            c.Name,
					Translation:     c.Translation,
					Transliteration: c.Transliteration,
					Start:           c.Start,
					End:             c.End,
				})
			}
		}
	}
	return out
}

// Merge joins couplets with their taxonomy. Mu. Varadarajan's commentary is
// used as the default Tamil meaning. Couplets outside every chapter range keep
// empty taxonomy fields.
func Merge(raw []RawKural, detail Detail) kural.Document {
	out := make([]kural.Kural, 0, len(raw))
	for _, k := range raw {
		p, _ := detail.locate(k.Number)
		out = append(out, kural.Kural{
			Number:          k.Number,
			Paal:            p.paal,
			Iyal:            p.iyal,
			Adhigaram:       p.chapter.Name,
			Line1:           strings.TrimSpace(k.Line1),
			Line2:           strings.TrimSpace(k.Line2),
			MeaningTamil:    k.MV,
			Transliteration: strings.TrimSpace(k.Transliteration1 + " " + k.Transliteration2),
			MeaningEnglish:  k.Explanation,
			Varadarajan:     k.MV,
			SolomonPappaiah: k.SP,
			Karunanidhi:     k.MK,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return kural.Document{Kurals: out, Chapters: detail.Chapters()}
}
