package kural_test

import (
	"net/url"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/thirukkural/pkg/kural"
	"github.com/japaniel/thirukkural/pkg/kural/kuraltest"
)

func TestTaxonomyIsCascading(t *testing.T) {
	ds := kuraltest.Dataset(t)

	assert.Equal(t, []string{kuraltest.Aram, kuraltest.Porul, kuraltest.Kamam}, ds.Paals())

	for _, iyal := range ds.Iyals(kuraltest.Kamam) {
		for _, k := range ds.Apply(kural.Filter{Iyal: iyal}) {
			require.Equal(t, kuraltest.Kamam, k.Paal)
		}
	}

	assert.Len(t, ds.Adhigarams("", ""), 133)
	assert.Len(t, ds.Adhigarams(kuraltest.Aram, ""), 38)
	iyal := ds.Iyals(kuraltest.Aram)[0]
	assert.Equal(t, []string{
		kuraltest.ChapterName(1), kuraltest.ChapterName(2), kuraltest.ChapterName(3),
		kuraltest.ChapterName(4), kuraltest.ChapterName(5), kuraltest.ChapterName(6),
		kuraltest.ChapterName(7),
	}, ds.Adhigarams(kuraltest.Aram, iyal))
}

func TestFilterReturnsOnlyMatches(t *testing.T) {
	ds := kuraltest.Dataset(t)

	cases := []kural.Filter{
		{Paal: kuraltest.Porul},
		{Paal: kuraltest.Aram, Iyal: ds.Iyals(kuraltest.Aram)[1]},
		{Adhigaram: kuraltest.ChapterName(100)},
		{Paal: kuraltest.Aram, Adhigaram: kuraltest.ChapterName(100)},
	}
	for _, f := range cases {
		got := ds.Apply(f)
		for _, k := range got {
			require.True(t, f.Match(k), "filter %+v returned %d", f, k.Number)
		}
	}

	assert.Len(t, ds.Apply(kural.Filter{Paal: kuraltest.Porul}), 700)
	assert.Len(t, ds.Apply(kural.Filter{Adhigaram: kuraltest.ChapterName(100)}), 10)
	assert.Empty(t, ds.Apply(kural.Filter{Paal: kuraltest.Aram, Adhigaram: kuraltest.ChapterName(100)}))
	assert.Len(t, ds.Apply(kural.Filter{}), kural.Count)
}

func TestFilterCascadeClearsNarrowerLevels(t *testing.T) {
	f := kural.Filter{Paal: "a", Iyal: "b", Adhigaram: "c"}

	assert.Equal(t, kural.Filter{Paal: "x"}, f.WithPaal("x"))
	assert.Equal(t, kural.Filter{Paal: "a", Iyal: "y"}, f.WithIyal("y"))
	assert.Equal(t, kural.Filter{Paal: "a", Iyal: "b", Adhigaram: "z"}, f.WithAdhigaram("z"))
	assert.True(t, f.WithPaal("").IsZero())
}

func TestFilterValuesRoundTrip(t *testing.T) {
	f := kural.Filter{Paal: kuraltest.Aram, Adhigaram: "வான்சிறப்பு"}
	v := f.PageValues(3)

	want := url.Values{"paal": {kuraltest.Aram}, "adhigaram": {"வான்சிறப்பு"}, "page": {"3"}}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, f, kural.FilterFromValues(v))
	assert.NotContains(t, f.PageValues(1), "page")
}

func TestPaginate(t *testing.T) {
	items := kuraltest.Kurals()[:30]

	p := kural.Paginate(items, 1, 12)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 30, p.TotalItems)
	require.Len(t, p.Items, 12)
	assert.Equal(t, 1, p.Items[0].Number)
	assert.False(t, p.HasPrev())
	assert.True(t, p.HasNext())

	p = kural.Paginate(items, 3, 12)
	require.Len(t, p.Items, 6)
	assert.Equal(t, 25, p.Items[0].Number)
	assert.False(t, p.HasNext())

	// Out of range pages clamp.
	assert.Equal(t, 3, kural.Paginate(items, 99, 12).Number)
	assert.Equal(t, 1, kural.Paginate(items, -4, 12).Number)

	empty := kural.Paginate(nil, 2, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.Empty(t, empty.Items)
}

func TestPageRange(t *testing.T) {
	render := func(links []kural.PageLink) []string {
		var out []string
		for _, l := range links {
			switch {
			case l.Ellipsis:
				out = append(out, "...")
			case l.Current:
				out = append(out, "["+strconv.Itoa(l.Number)+"]")
			default:
				out = append(out, strconv.Itoa(l.Number))
			}
		}
		return out
	}

	tests := []struct {
		current, total int
		want           []string
	}{
		{1, 1, []string{"[1]"}},
		{1, 5, []string{"[1]", "2", "3", "4", "5"}},
		{1, 111, []string{"[1]", "2", "3", "...", "111"}},
		{5, 111, []string{"1", "2", "3", "4", "[5]", "6", "7", "...", "111"}},
		{50, 111, []string{"1", "...", "48", "49", "[50]", "51", "52", "...", "111"}},
		{111, 111, []string{"1", "...", "109", "110", "[111]"}},
		{4, 9, []string{"1", "2", "3", "[4]", "5", "6", "...", "9"}},
	}
	for _, tt := range tests {
		got := render(kural.PageRange(tt.current, tt.total, 2))
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("PageRange(%d, %d) mismatch (-want +got):\n%s", tt.current, tt.total, diff)
		}
	}
	assert.Nil(t, kural.PageRange(1, 0, 2))
}
