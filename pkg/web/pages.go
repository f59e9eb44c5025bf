package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/japaniel/thirukkural/pkg/ai"
	"github.com/japaniel/thirukkural/pkg/db"
	"github.com/japaniel/thirukkural/pkg/i18n"
	"github.com/japaniel/thirukkural/pkg/kural"
	"github.com/japaniel/thirukkural/pkg/prefs"
)

const featuredCount = 6

type homeData struct {
	Daily    kural.Kural
	Shuffled bool
	Featured []kural.Kural
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	var data homeData
	if r.URL.Query().Get("shuffle") == "1" {
		if picks := s.randomKurals(1); len(picks) == 1 {
			data.Daily, data.Shuffled = picks[0], true
		}
	}
	if !data.Shuffled {
		k, ok := s.data.Daily(s.now())
		if !ok {
			s.handleNotFound(w, r)
			return
		}
		data.Daily = k
	}
	data.Featured = s.randomKurals(featuredCount)
	s.render(w, r, http.StatusOK, "home", "home.title", data)
}

type pageLink struct {
	kural.PageLink
	URL string
}

type browseData struct {
	Filter     kural.Filter
	Paals      []string
	Iyals      []string
	Adhigarams []string
	Page       kural.Page
	Links      []pageLink
	PrevURL    string
	NextURL    string
	ClearURL   string
}

// cascade drops levels that do not belong under the chosen wider level, so a
// changed paal resets its iyal and adhigaram.
func (s *Server) cascade(f kural.Filter) kural.Filter {
	if f.Paal != "" && !slices.Contains(s.data.Paals(), f.Paal) {
		f = kural.Filter{}
	}
	if f.Iyal != "" && !slices.Contains(s.data.Iyals(f.Paal), f.Iyal) {
		f = f.WithPaal(f.Paal)
	}
	if f.Adhigaram != "" && !slices.Contains(s.data.Adhigarams(f.Paal, f.Iyal), f.Adhigaram) {
		f = f.WithIyal(f.Iyal)
	}
	return f
}

func browseURL(f kural.Filter, page int) string {
	v := f.PageValues(page)
	if len(v) == 0 {
		return "/browse"
	}
	return "/browse?" + v.Encode()
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := s.cascade(kural.FilterFromValues(q))
	pageNum, _ := strconv.Atoi(q.Get("page"))
	p := kural.Paginate(s.data.Apply(f), pageNum, kural.PerPage)

	data := browseData{
		Filter:     f,
		Paals:      s.data.Paals(),
		Iyals:      s.data.Iyals(f.Paal),
		Adhigarams: s.data.Adhigarams(f.Paal, f.Iyal),
		Page:       p,
		ClearURL:   "/browse",
	}
	for _, l := range kural.PageRange(p.Number, p.TotalPages, 2) {
		pl := pageLink{PageLink: l}
		if !l.Ellipsis {
			pl.URL = browseURL(f, l.Number)
		}
		data.Links = append(data.Links, pl)
	}
	if p.HasPrev() {
		data.PrevURL = browseURL(f, p.Number-1)
	}
	if p.HasNext() {
		data.NextURL = browseURL(f, p.Number+1)
	}
	s.render(w, r, http.StatusOK, "browse", "browse.title", data)
}

type kuralData struct {
	Kural       kural.Kural
	Chapter     kural.Chapter
	HasChapter  bool
	Prev, Next  int
	Bookmarked  bool
	Liked       bool
	Explanation *ai.Section
	Model       string
	AIError     string
	BrowseURL   string
}

func (s *Server) kuralData(r *http.Request, k kural.Kural) kuralData {
	data := kuralData{
		Kural:     k,
		Prev:      s.data.Prev(k.Number),
		Next:      s.data.Next(k.Number),
		BrowseURL: browseURL(kural.Filter{Paal: k.Paal, Iyal: k.Iyal, Adhigaram: k.Adhigaram}, 1),
	}
	data.Chapter, data.HasChapter = s.data.Chapter(k.Adhigaram)

	visitor := visitorFrom(r)
	var err error
	if data.Bookmarked, err = s.prefs.Has(r.Context(), visitor, prefs.Bookmark, k.Number); err != nil {
		s.logger.Warn("read bookmark", zap.Error(err))
	}
	if data.Liked, err = s.prefs.Has(r.Context(), visitor, prefs.Like, k.Number); err != nil {
		s.logger.Warn("read like", zap.Error(err))
	}
	if exp, ok := s.cachedExplanation(k.Number); ok {
		sec := exp.For(string(langFrom(r)))
		data.Explanation, data.Model = &sec, exp.Model
	}
	return data
}

func (s *Server) handleKural(w http.ResponseWriter, r *http.Request) {
	k, err := s.data.LookupString(chi.URLParam(r, "number"))
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	s.render(w, r, http.StatusOK, "kural", "kural.number", s.kuralData(r, k))
}

// handleExplainPage generates the explanation for browsers without script
// and shows the page with the result or a localised failure.
func (s *Server) handleExplainPage(w http.ResponseWriter, r *http.Request) {
	k, err := s.data.LookupString(chi.URLParam(r, "number"))
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	exp, _, err := s.explain(r.Context(), k)
	data := s.kuralData(r, k)
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		data.AIError = s.bundle.T(langFrom(r), ai.MessageKey(err))
		s.logger.Warn("explain failed", zap.Int("kural", k.Number), zap.Error(err))
	} else {
		sec := exp.For(string(langFrom(r)))
		data.Explanation, data.Model = &sec, exp.Model
	}
	s.render(w, r, status, "kural", "kural.number", data)
}

func (s *Server) handleTogglePage(kind prefs.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k, err := s.data.LookupString(chi.URLParam(r, "number"))
		if err != nil {
			s.handleNotFound(w, r)
			return
		}
		if _, err := s.prefs.Toggle(r.Context(), visitorFrom(r), kind, k.Number); err != nil {
			s.logger.Error("toggle preference", zap.String("kind", string(kind)), zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, backTo(r, fmt.Sprintf("/kural/%d", k.Number)), http.StatusSeeOther)
	}
}

type searchData struct {
	Query        string
	Adhigaram    string
	ChapterQuery string
	Chapters     []string
	TooShort     bool
	NoResults    bool
	Result       kural.SearchResult
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := searchData{Query: q.Get("q"), Adhigaram: q.Get("adhigaram"), ChapterQuery: q.Get("chapter")}
	data.Chapters = s.data.SearchChapters(data.ChapterQuery)
	// Keep the chosen chapter selectable when the filter hides it.
	if data.Adhigaram != "" && !slices.Contains(data.Chapters, data.Adhigaram) &&
		slices.Contains(s.data.Adhigarams("", ""), data.Adhigaram) {
		data.Chapters = append([]string{data.Adhigaram}, data.Chapters...)
	}
	data.Result = s.data.Search(data.Query, kural.SearchOptions{Adhigaram: data.Adhigaram, Limit: 50})
	data.TooShort = data.Result.Ignored
	data.NoResults = !data.Result.Ignored && strings.TrimSpace(data.Query) != "" && data.Result.Empty()
	s.render(w, r, http.StatusOK, "search", "search.title", data)
}

type listData struct {
	Kind   prefs.Kind
	Kurals []kural.Kural
}

func (s *Server) handlePrefsPage(kind prefs.Kind) http.HandlerFunc {
	key := "bookmarks.title"
	if kind == prefs.Like {
		key = "likes.title"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		numbers, err := s.prefs.List(r.Context(), visitorFrom(r), kind)
		if err != nil {
			s.logger.Error("list preferences", zap.String("kind", string(kind)), zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.render(w, r, http.StatusOK, "list", key, listData{Kind: kind, Kurals: s.data.Select(numbers)})
	}
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "about", "about.title", nil)
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	l, ok := i18n.Parse(chi.URLParam(r, "lang"))
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	setLangCookie(w, l)
	http.Redirect(w, r, backTo(r, "/"), http.StatusSeeOther)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "notfound", "error.notFound", nil)
}

// backTo returns the same-origin referring path, or fallback.
func backTo(r *http.Request, fallback string) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" {
		return fallback
	}
	if ref.Host != "" && ref.Host != r.Host {
		return fallback
	}
	out := ref.Path
	if ref.RawQuery != "" {
		out += "?" + ref.RawQuery
	}
	return out
}

// cachedExplanation reads a stored explanation; any failure counts as a miss.
func (s *Server) cachedExplanation(number int) (ai.Explanation, bool) {
	if s.db == nil {
		return ai.Explanation{}, false
	}
	row, err := db.GetExplanation(s.db, number)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("read explanation", zap.Int("kural", number), zap.Error(err))
		}
		return ai.Explanation{}, false
	}
	var exp ai.Explanation
	if err := json.Unmarshal([]byte(row.Payload), &exp); err != nil {
		s.logger.Warn("stored explanation unreadable", zap.Int("kural", number), zap.Error(err))
		return ai.Explanation{}, false
	}
	exp.Model = row.Model
	return exp, true
}

// explain serves a stored explanation or generates and stores one. Concurrent
// requests for the same kural share one generation, which runs on its own
// deadline so a caller that goes away does not fail the others.
func (s *Server) explain(ctx context.Context, k kural.Kural) (ai.Explanation, bool, error) {
	if exp, ok := s.cachedExplanation(k.Number); ok {
		return exp, true, nil
	}
	ch := s.inflight.DoChan(strconv.Itoa(k.Number), func() (any, error) {
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		exp, err := s.explainer.Explain(gctx, k)
		if err != nil {
			return nil, err
		}
		if s.db != nil {
			payload, err := json.Marshal(exp)
			if err == nil {
				err = db.SaveExplanation(s.db, k.Number, exp.Model, string(payload))
			}
			if err != nil {
				s.logger.Warn("store explanation", zap.Int("kural", k.Number), zap.Error(err))
			}
		}
		return exp, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return ai.Explanation{}, false, res.Err
		}
		return res.Val.(ai.Explanation), false, nil
	case <-ctx.Done():
		return ai.Explanation{}, false, ctx.Err()
	}
}
