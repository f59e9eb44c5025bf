package kural

import (
	"net/url"
	"strconv"
)

// PerPage is the browse grid size.
const PerPage = 12

// Paals returns the distinct divisions in dataset order.
func (d *Dataset) Paals() []string {
	return d.distinct(Filter{}, func(k Kural) string { return k.Paal })
}

// Iyals returns the sections under paal, or all sections when paal is empty.
func (d *Dataset) Iyals(paal string) []string {
	return d.distinct(Filter{Paal: paal}, func(k Kural) string { return k.Iyal })
}

// Adhigarams returns the chapters narrowed by paal and iyal (either may be empty).
func (d *Dataset) Adhigarams(paal, iyal string) []string {
	return d.distinct(Filter{Paal: paal, Iyal: iyal}, func(k Kural) string { return k.Adhigaram })
}

func (d *Dataset) distinct(f Filter, field func(Kural) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range d.kurals {
		if !f.Match(k) {
			continue
		}
		v := field(k)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Filter narrows the dataset by taxonomy. Empty fields match everything.
type Filter struct {
	Paal      string
	Iyal      string
	Adhigaram string
}

// FilterFromValues reads a filter from URL query parameters.
func FilterFromValues(v url.Values) Filter {
	return Filter{
		Paal:      v.Get("paal"),
		Iyal:      v.Get("iyal"),
		Adhigaram: v.Get("adhigaram"),
	}
}

// Match reports whether k satisfies every non-empty field.
func (f Filter) Match(k Kural) bool {
	if f.Paal != "" && k.Paal != f.Paal {
		return false
	}
	if f.Iyal != "" && k.Iyal != f.Iyal {
		return false
	}
	if f.Adhigaram != "" && k.Adhigaram != f.Adhigaram {
		return false
	}
	return true
}

// IsZero reports whether no field is set.
func (f Filter) IsZero() bool { return f == Filter{} }

// WithPaal selects a division and clears the narrower levels.
func (f Filter) WithPaal(paal string) Filter {
	return Filter{Paal: paal}
}

// WithIyal selects a section and clears the chapter.
func (f Filter) WithIyal(iyal string) Filter {
	return Filter{Paal: f.Paal, Iyal: iyal}
}

// WithAdhigaram selects a chapter.
func (f Filter) WithAdhigaram(adhigaram string) Filter {
	f.Adhigaram = adhigaram
	return f
}

// Values encodes the filter as query parameters, omitting empty fields.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Paal != "" {
		v.Set("paal", f.Paal)
	}
	if f.Iyal != "" {
		v.Set("iyal", f.Iyal)
	}
	if f.Adhigaram != "" {
		v.Set("adhigaram", f.Adhigaram)
	}
	return v
}

// PageValues is Values plus a page number; page 1 is left implicit.
func (f Filter) PageValues(page int) url.Values {
	v := f.Values()
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	return v
}

// Apply returns the matching records in number order.
func (d *Dataset) Apply(f Filter) []Kural {
	if f.IsZero() {
		return d.kurals
	}
	var out []Kural
	for _, k := range d.kurals {
		if f.Match(k) {
			out = append(out, k)
		}
	}
	return out
}

// Page is one slice of a paginated result.
type Page struct {
	Items      []Kural
	Number     int
	TotalPages int
	TotalItems int
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a following page exists.
func (p Page) HasNext() bool { return p.Number < p.TotalPages }

// Paginate slices items into pages of perPage. Out-of-range pages are clamped.
func Paginate(items []Kural, page, perPage int) Page {
	if perPage <= 0 {
		perPage = PerPage
	}
	total := (len(items) + perPage - 1) / perPage
	if page < 1 {
		page = 1
	}
	if total > 0 && page > total {
		page = total
	}
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	return Page{
		Items:      items[start:end],
		Number:     page,
		TotalPages: total,
		TotalItems: len(items),
	}
}

// PageLink is one entry of a pagination bar. Ellipsis entries have Number 0.
type PageLink struct {
	Number   int
	Current  bool
	Ellipsis bool
}

// PageRange lists the first page, the last page and delta pages either side of
// current. A gap of exactly one page is filled in; wider gaps become an ellipsis.
func PageRange(current, total, delta int) []PageLink {
	if total <= 0 {
		return nil
	}
	var pages []int
	for i := 1; i <= total; i++ {
		if i == 1 || i == total || (i >= current-delta && i <= current+delta) {
			pages = append(pages, i)
		}
	}
	var out []PageLink
	prev := 0
	for _, p := range pages {
		if prev != 0 {
			switch {
			case p-prev == 2:
				out = append(out, PageLink{Number: prev + 1, Current: prev+1 == current})
			case p-prev != 1:
				out = append(out, PageLink{Ellipsis: true})
			}
		}
		out = append(out, PageLink{Number: p, Current: p == current})
		prev = p
	}
	return out
}
