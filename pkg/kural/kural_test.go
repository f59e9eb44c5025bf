package kural_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/thirukkural/pkg/kural"
	"github.com/japaniel/thirukkural/pkg/kural/kuraltest"
)

func TestLoadSampleDocument(t *testing.T) {
	ds, err := kural.Load("testdata/sample.json")
	require.NoError(t, err)
	require.Equal(t, 4, ds.Len())

	// Records come back ordered by number regardless of file order.
	var got []int
	for _, k := range ds.All() {
		got = append(got, k.Number)
	}
	assert.Equal(t, []int{1, 2, 11, 381}, got)

	k, err := ds.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, "அகர முதல எழுத்தெல்லாம் ஆதி", k.Line1)
	assert.Equal(t, "கடவுள் வாழ்த்து", k.Adhigaram)
	assert.NotEmpty(t, k.Karunanidhi)

	c, ok := ds.Chapter("வான்சிறப்பு")
	require.True(t, ok)
	assert.Equal(t, "The Excellence of Rain", c.Translation)
}

func TestParseBareArray(t *testing.T) {
	ds, err := kural.Parse(strings.NewReader(`[{"number": 5, "paal": "p"}, {"number": 3, "paal": "p"}]`))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 3, ds.All()[0].Number)
}

func TestParseRejectsInvalidNumbers(t *testing.T) {
	_, err := kural.Parse(strings.NewReader(`[{"number": 0}]`))
	assert.Error(t, err)

	_, err = kural.Parse(strings.NewReader(`[{"number": 1331}]`))
	assert.Error(t, err)

	_, err = kural.Parse(strings.NewReader(`[{"number": 7}, {"number": 7}]`))
	assert.ErrorContains(t, err, "duplicate")
}

func TestLookupEveryNumberOnce(t *testing.T) {
	ds := kuraltest.Dataset(t)
	require.Equal(t, kural.Count, ds.Len())

	seen := make(map[int]int)
	for n := 1; n <= kural.Count; n++ {
		k, err := ds.Lookup(n)
		require.NoError(t, err)
		require.Equal(t, n, k.Number)
		seen[k.Number]++
	}
	for n, c := range seen {
		if c != 1 {
			t.Fatalf("kural %d resolved %d times", n, c)
		}
	}
}

func TestLookupMiss(t *testing.T) {
	ds := kuraltest.Dataset(t)
	for _, n := range []int{0, -1, 1331} {
		_, err := ds.Lookup(n)
		assert.True(t, errors.Is(err, kural.ErrNotFound), "lookup %d: %v", n, err)
	}
	_, err := ds.LookupString("abc")
	assert.ErrorIs(t, err, kural.ErrNotFound)

	k, err := ds.LookupString(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, 42, k.Number)
}

func TestPrevNext(t *testing.T) {
	ds := kuraltest.Dataset(t)
	assert.Equal(t, 0, ds.Prev(1))
	assert.Equal(t, 2, ds.Next(1))
	assert.Equal(t, 1329, ds.Prev(1330))
	assert.Equal(t, 0, ds.Next(1330))
}

func TestPrevNextFollowDatasetOrder(t *testing.T) {
	ds, err := kural.Load("testdata/sample.json")
	require.NoError(t, err)

	assert.Equal(t, 11, ds.Next(2))
	assert.Equal(t, 2, ds.Prev(11))
	assert.Equal(t, 11, ds.Prev(381))
	assert.Equal(t, 0, ds.Next(381))
	// Numbers missing from the dataset have no neighbours.
	assert.Equal(t, 0, ds.Prev(5))
	assert.Equal(t, 0, ds.Next(5))
}

func TestSelectSkipsUnknownAndDuplicates(t *testing.T) {
	ds, err := kural.Load("testdata/sample.json")
	require.NoError(t, err)

	got := ds.Select([]int{381, 1, 1, 999, 2})
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, 2, got[1].Number)
	assert.Equal(t, 381, got[2].Number)
}

func TestShareText(t *testing.T) {
	ds, err := kural.Load("testdata/sample.json")
	require.NoError(t, err)
	k, err := ds.Lookup(1)
	require.NoError(t, err)

	text := kural.ShareText(k)
	assert.True(t, strings.HasPrefix(text, "திருக்குறள் 1\n"))
	assert.Contains(t, text, "அதிகாரம்: கடவுள் வாழ்த்து")
	assert.Contains(t, text, k.Line1+"\n"+k.Line2)
	assert.Contains(t, text, "English Explanation:\n"+k.MeaningEnglish)
}
