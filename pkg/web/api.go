package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/japaniel/thirukkural/pkg/ai"
	"github.com/japaniel/thirukkural/pkg/i18n"
	"github.com/japaniel/thirukkural/pkg/kural"
	"github.com/japaniel/thirukkural/pkg/prefs"
)

// maxChatBody bounds the chat request, history included.
const maxChatBody = 64 << 10

type kuralResponse struct {
	Kural   kural.Kural    `json:"kural"`
	Chapter *kural.Chapter `json:"chapter,omitempty"`
	Prev    int            `json:"prev,omitempty"`
	Next    int            `json:"next,omitempty"`
	Share   string         `json:"share"`
}

func (s *Server) apiKural(w http.ResponseWriter, r *http.Request) {
	k, err := s.data.LookupString(chi.URLParam(r, "number"))
	if err != nil {
		s.writeAPIError(w, r, err, false)
		return
	}
	resp := kuralResponse{
		Kural: k,
		Prev:  s.data.Prev(k.Number),
		Next:  s.data.Next(k.Number),
		Share: kural.ShareText(k),
	}
	if c, ok := s.data.Chapter(k.Adhigaram); ok {
		resp.Chapter = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) apiSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := kural.SearchOptions{Adhigaram: q.Get("adhigaram")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > kural.Count {
			s.writeAPIError(w, r, fmt.Errorf("%w: limit %q", errBadRequest, v), false)
			return
		}
		opts.Limit = n
	}
	res := s.data.Search(q.Get("q"), opts)
	if res.Kurals == nil {
		res.Kurals = []kural.Kural{}
	}
	if res.Adhigarams == nil {
		res.Adhigarams = []string{}
	}
	writeJSON(w, http.StatusOK, res)
}

type taxonomyResponse struct {
	Paals      []string `json:"paals"`
	Iyals      []string `json:"iyals"`
	Adhigarams []string `json:"adhigarams"`
}

func (s *Server) apiTaxonomy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paal, iyal := q.Get("paal"), q.Get("iyal")
	adhigarams := s.data.Adhigarams(paal, iyal)
	if cq := q.Get("q"); cq != "" {
		matches := s.data.SearchChapters(cq)
		adhigarams = slices.DeleteFunc(adhigarams, func(a string) bool { return !slices.Contains(matches, a) })
	}
	if adhigarams == nil {
		adhigarams = []string{}
	}
	writeJSON(w, http.StatusOK, taxonomyResponse{
		Paals:      s.data.Paals(),
		Iyals:      s.data.Iyals(paal),
		Adhigarams: adhigarams,
	})
}

type prefResponse struct {
	Kind   prefs.Kind `json:"kind"`
	Number int        `json:"number"`
	Active bool       `json:"active"`
}

type prefListResponse struct {
	Kind    prefs.Kind `json:"kind"`
	Numbers []int      `json:"numbers"`
}

func prefTarget(r *http.Request) (prefs.Kind, int, error) {
	kind, err := prefs.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", 0, err
	}
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", prefs.ErrInvalidNumber, err)
	}
	return kind, n, nil
}

func (s *Server) apiTogglePref(w http.ResponseWriter, r *http.Request) {
	kind, n, err := prefTarget(r)
	if err != nil {
		s.writeAPIError(w, r, err, false)
		return
	}
	active, err := s.prefs.Toggle(r.Context(), visitorFrom(r), kind, n)
	if err != nil {
		s.writeAPIError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, prefResponse{Kind: kind, Number: n, Active: active})
}

// apiSetPref adds the number on PUT and removes it on DELETE.
func (s *Server) apiSetPref(w http.ResponseWriter, r *http.Request) {
	kind, n, err := prefTarget(r)
	if err != nil {
		s.writeAPIError(w, r, err, false)
		return
	}
	on := r.Method == http.MethodPut
	if err := s.prefs.Set(r.Context(), visitorFrom(r), kind, n, on); err != nil {
		s.writeAPIError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, prefResponse{Kind: kind, Number: n, Active: on})
}

func (s *Server) apiListPrefs(w http.ResponseWriter, r *http.Request) {
	kind, err := prefs.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeAPIError(w, r, err, false)
		return
	}
	numbers, err := s.prefs.List(r.Context(), visitorFrom(r), kind)
	if err != nil {
		s.writeAPIError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, prefListResponse{Kind: kind, Numbers: numbers})
}

type explainResponse struct {
	Number int        `json:"number"`
	Model  string     `json:"model,omitempty"`
	Cached bool       `json:"cached"`
	EN     ai.Section `json:"en"`
	TA     ai.Section `json:"ta"`
}

func (s *Server) apiExplain(w http.ResponseWriter, r *http.Request) {
	k, err := s.data.LookupString(chi.URLParam(r, "number"))
	if err != nil {
		s.writeAPIError(w, r, err, false)
		return
	}
	exp, cached, err := s.explain(r.Context(), k)
	if err != nil {
		s.writeAPIError(w, r, err, true)
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{
		Number: k.Number,
		Model:  exp.Model,
		Cached: cached,
		EN:     exp.EN,
		TA:     exp.TA,
	})
}

type chatRequest struct {
	History []ai.Message `json:"history"`
	Message string       `json:"message"`
	Lang    string       `json:"lang"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) apiChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody))
	if err := dec.Decode(&req); err != nil {
		s.writeAPIError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), false)
		return
	}
	lang := langFrom(r)
	if l, ok := i18n.Parse(req.Lang); ok {
		lang = l
	}
	reply, err := s.chat.Reply(r.Context(), req.History, req.Message, string(lang))
	if err != nil {
		status := statusFor(err)
		key := ai.MsgChatFailed
		switch status {
		case http.StatusBadRequest:
			key = "error.badRequest"
		case http.StatusServiceUnavailable:
			key = ai.MsgMissingKey
		default:
			status = http.StatusBadGateway
			s.logger.Warn("chat failed", zap.Error(err))
		}
		writeJSON(w, status, errorBody{Error: s.bundle.T(lang, key)})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}
