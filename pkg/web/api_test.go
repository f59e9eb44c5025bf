package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/thirukkural/pkg/kural"
	"github.com/japaniel/thirukkural/pkg/kural/kuraltest"
)

func TestAPIKural(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/kurals/10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	resp := decode[kuralResponse](t, rec)
	assert.Equal(t, 10, resp.Kural.Number)
	assert.Equal(t, 9, resp.Prev)
	assert.Equal(t, 11, resp.Next)
	assert.Contains(t, resp.Share, "திருக்குறள் 10")

	rec = f.do(t, http.MethodGet, "/api/kurals/1331", nil, english)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Kural not found", decode[errorBody](t, rec).Error)
}

func TestAPISearch(t *testing.T) {
	f := newFixture(t, nil)
	res := decode[kural.SearchResult](t, f.do(t, http.MethodGet, "/api/search?q=12", nil))
	require.NotEmpty(t, res.Kurals)
	assert.Equal(t, 12, res.Kurals[0].Number)
	assert.LessOrEqual(t, len(res.Kurals), kural.DefaultSearchLimit)

	res = decode[kural.SearchResult](t, f.do(t, http.MethodGet, "/api/search?q=longing&limit=2", nil))
	assert.Len(t, res.Kurals, 2)

	rec := f.do(t, http.MethodGet, "/api/search?q=a", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kurals":[]`)

	rec = f.do(t, http.MethodGet, "/api/search?q=aa&limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPITaxonomy(t *testing.T) {
	f := newFixture(t, nil)
	resp := decode[taxonomyResponse](t, f.do(t, http.MethodGet, "/api/taxonomy?paal="+kuraltest.Kamam, nil))
	assert.Len(t, resp.Paals, 3)
	assert.NotEmpty(t, resp.Iyals)
	assert.Len(t, resp.Adhigarams, 25)

	q := url.Values{"paal": {kuraltest.Kamam}, "q": {"அதிகாரம் 13"}}
	resp = decode[taxonomyResponse](t, f.do(t, http.MethodGet, "/api/taxonomy?"+q.Encode(), nil))
	assert.Equal(t, []string{
		kuraltest.ChapterName(130), kuraltest.ChapterName(131),
		kuraltest.ChapterName(132), kuraltest.ChapterName(133),
	}, resp.Adhigarams)

	rec := f.do(t, http.MethodGet, "/api/taxonomy?q=nothing-like-this", nil)
	assert.Contains(t, rec.Body.String(), `"adhigarams":[]`)
}

func TestAPISetPref(t *testing.T) {
	f := newFixture(t, nil)
	vc := cookie(f.do(t, http.MethodGet, "/healthz", nil), visitorCookie)
	require.NotNil(t, vc)

	for range 2 {
		rec := f.do(t, http.MethodPut, "/api/prefs/bookmark/42", nil, vc)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[prefResponse](t, rec).Active)
	}
	list := decode[prefListResponse](t, f.do(t, http.MethodGet, "/api/prefs/bookmarks", nil, vc))
	assert.Equal(t, []int{42}, list.Numbers)

	for range 2 {
		rec := f.do(t, http.MethodDelete, "/api/prefs/bookmark/42", nil, vc)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[prefResponse](t, rec).Active)
	}
	list = decode[prefListResponse](t, f.do(t, http.MethodGet, "/api/prefs/bookmarks", nil, vc))
	assert.Empty(t, list.Numbers)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/prefs/bookmark/0", nil, vc).Code)
}

func TestAPIPrefs(t *testing.T) {
	f := newFixture(t, nil)
	vc := cookie(f.do(t, http.MethodGet, "/healthz", nil), visitorCookie)
	require.NotNil(t, vc)

	for _, n := range []string{"300", "3"} {
		rec := f.do(t, http.MethodPost, "/api/prefs/like/"+n, nil, vc)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[prefResponse](t, rec).Active)
	}
	list := decode[prefListResponse](t, f.do(t, http.MethodGet, "/api/prefs/likes", nil, vc))
	assert.Equal(t, []int{3, 300}, list.Numbers)

	rec := f.do(t, http.MethodPost, "/api/prefs/like/3", nil, vc)
	assert.False(t, decode[prefResponse](t, rec).Active)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/prefs/like/1331", nil, vc).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/prefs/like/x", nil, vc).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/prefs/stars", nil, vc).Code)
}

func TestAPIExplainCachesResult(t *testing.T) {
	gen := &stubGen{text: "```json\n" + explanationJSON + "\n```"}
	f := newFixture(t, gen)

	rec := f.do(t, http.MethodPost, "/api/kurals/1/explain", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[explainResponse](t, rec)
	assert.False(t, first.Cached)
	assert.Equal(t, "stub", first.Model)
	assert.Equal(t, []string{"Begin with humility"}, first.EN.Modern)

	second := decode[explainResponse](t, f.do(t, http.MethodPost, "/api/kurals/1/explain", nil))
	assert.True(t, second.Cached)
	assert.Equal(t, first.TA, second.TA)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestAPIExplainErrors(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/kurals/1/explain", nil, english)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error, "GEMINI_API_KEY")

	f = newFixture(t, &stubGen{text: "Sorry, I cannot"})
	rec = f.do(t, http.MethodPost, "/api/kurals/1/explain", nil, english)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "The explanation could not be read. Please try again.", decode[errorBody](t, rec).Error)

	f = newFixture(t, &stubGen{err: errors.New("quota exceeded")})
	rec = f.do(t, http.MethodPost, "/api/kurals/1/explain", nil, english)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "quota")

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/kurals/0/explain", nil).Code)
}

func TestAPIChat(t *testing.T) {
	gen := &stubGen{text: "**Patience** brings peace."}
	f := newFixture(t, gen)

	body := `{"history":[{"role":"user","content":"hello"},{"role":"model","content":"welcome"}],"message":"I am anxious","lang":"en"}`
	rec := f.do(t, http.MethodPost, "/api/chat", strings.NewReader(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Patience brings peace.", decode[chatResponse](t, rec).Reply)

	rec = f.do(t, http.MethodPost, "/api/chat", strings.NewReader(`{"message":"  "}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/chat", strings.NewReader(`{not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	failing := newFixture(t, &stubGen{err: errors.New("down")})
	rec = failing.do(t, http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi","lang":"en"}`))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "My friend, the connection is weak. Please try again.", decode[errorBody](t, rec).Error)

	rec = newFixture(t, nil).do(t, http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi","lang":"ta"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
