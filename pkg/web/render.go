package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/japaniel/thirukkural/pkg/ai"
	"github.com/japaniel/thirukkural/pkg/i18n"
	"github.com/japaniel/thirukkural/pkg/kural"
	"github.com/japaniel/thirukkural/pkg/prefs"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// page is the data every template receives.
type page struct {
	Lang      i18n.Lang
	OtherLang i18n.Lang
	Path      string
	Title     string
	Data      any
}

func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"t": func(lang i18n.Lang, key string) string { return s.bundle.T(lang, key) },
		"share": kural.ShareText,
		"kuralURL": func(n int) string { return fmt.Sprintf("/kural/%d", n) },
	}
	base, err := template.New("base.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/base.tmpl")
	if err != nil {
		return nil, err
	}
	files, err := fs.Glob(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template)
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".tmpl")
		if name == "base" || strings.HasPrefix(name, "_") {
			continue
		}
		t, err := template.Must(base.Clone()).ParseFS(templateFS, f, "templates/_*.tmpl")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// render executes the base layout with the named page. Output is buffered
// so a template error still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, titleKey string, data any) {
	t, ok := s.pages[name]
	if !ok {
		s.logger.Error("unknown template", zap.String("page", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	lang := langFrom(r)
	p := page{
		Lang:      lang,
		OtherLang: lang.Other(),
		Path:      r.URL.RequestURI(),
		Title:     s.bundle.T(lang, titleKey),
		Data:      data,
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", p); err != nil {
		s.logger.Error("template exec", zap.String("page", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps package errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, kural.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, prefs.ErrInvalidNumber),
		errors.Is(err, prefs.ErrInvalidKind),
		errors.Is(err, ai.ErrEmptyMessage),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrMissingAPIKey):
		return http.StatusServiceUnavailable
	case errors.Is(err, ai.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

// writeAPIError sends a generic localised message; details go to the log.
func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error, aiCall bool) {
	status := statusFor(err)
	lang := langFrom(r)
	var key string
	switch {
	case status == http.StatusNotFound:
		key = "error.notFound"
	case status == http.StatusBadRequest:
		key = "error.badRequest"
	case aiCall:
		key = ai.MessageKey(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
	default:
		key = "error.internal"
	}
	if status >= 500 {
		s.logger.Warn("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: s.bundle.T(lang, key)})
}
