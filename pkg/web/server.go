// Package web serves the Thirukkural pages and JSON API.
package web

import (
	"context"
	"database/sql"
	"errors"
	"html/template"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/japaniel/thirukkural/pkg/ai"
	"github.com/japaniel/thirukkural/pkg/i18n"
	"github.com/japaniel/thirukkural/pkg/kural"
	"github.com/japaniel/thirukkural/pkg/prefs"
)

// Options configures a Server. Data is required; everything else has a
// usable default.
type Options struct {
	Data   *kural.Dataset
	Prefs  prefs.Store
	Bundle *i18n.Bundle
	Logger *zap.Logger

	// DB caches generated explanations. nil disables the cache.
	DB        *sql.DB
	Generator ai.Generator

	ChatHistory    int
	RequestTimeout time.Duration

	// Now and Rand are replaced in tests.
	Now  func() time.Time
	Rand *rand.Rand
}

// Server holds the dependencies shared by every handler.
type Server struct {
	data      *kural.Dataset
	prefs     prefs.Store
	bundle    *i18n.Bundle
	logger    *zap.Logger
	db        *sql.DB
	explainer *ai.Explainer
	chat      *ai.Chat
	timeout   time.Duration
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	pages    map[string]*template.Template
	inflight singleflight.Group
}

// New validates opts and parses the templates.
func New(opts Options) (*Server, error) {
	if opts.Data == nil {
		return nil, errors.New("web: dataset is required")
	}
	s := &Server{
		data:    opts.Data,
		prefs:   opts.Prefs,
		bundle:  opts.Bundle,
		logger:  opts.Logger,
		db:      opts.DB,
		timeout: opts.RequestTimeout,
		now:     opts.Now,
		rng:     opts.Rand,
	}
	if s.prefs == nil {
		s.prefs = prefs.NewMemory()
	}
	if s.bundle == nil {
		b, err := i18n.Load()
		if err != nil {
			return nil, err
		}
		s.bundle = b
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.timeout <= 0 {
		s.timeout = 60 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	gen := opts.Generator
	if gen == nil {
		gen = ai.Disabled{}
	}
	s.explainer = ai.NewExplainer(gen, s.logger.Named("explain"))
	s.chat = ai.NewChat(gen, s.logger.Named("chat"))
	if opts.ChatHistory > 0 {
		s.chat.MaxHistory = opts.ChatHistory
	}

	s.reportUntranslated()

	pages, err := s.parseTemplates()
	if err != nil {
		return nil, err
	}
	s.pages = pages
	return s, nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.visitor)
	r.Use(s.language)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/", s.handleHome)
	r.Get("/browse", s.handleBrowse)
	r.Get("/search", s.handleSearch)
	r.Get("/bookmarks", s.handlePrefsPage(prefs.Bookmark))
	r.Get("/likes", s.handlePrefsPage(prefs.Like))
	r.Get("/about", s.handleAbout)
	r.Get("/lang/{lang}", s.handleSetLanguage)
	r.Route("/kural/{number}", func(r chi.Router) {
		r.Get("/", s.handleKural)
		r.Post("/bookmark", s.handleTogglePage(prefs.Bookmark))
		r.Post("/like", s.handleTogglePage(prefs.Like))
		r.Post("/explain", s.handleExplainPage)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/kurals/{number}", s.apiKural)
		r.Post("/kurals/{number}/explain", s.apiExplain)
		r.Get("/search", s.apiSearch)
		r.Get("/taxonomy", s.apiTaxonomy)
		r.Get("/prefs/{kind}", s.apiListPrefs)
		r.Post("/prefs/{kind}/{number}", s.apiTogglePref)
		r.Put("/prefs/{kind}/{number}", s.apiSetPref)
		r.Delete("/prefs/{kind}/{number}", s.apiSetPref)
		r.Post("/chat", s.apiChat)
	})

	r.NotFound(s.handleNotFound)
	return r
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// reportUntranslated logs the English keys that Tamil pages show in English.
func (s *Server) reportUntranslated() {
	have := make(map[string]bool)
	for _, k := range s.bundle.Keys(i18n.Tamil) {
		have[k] = true
	}
	for _, k := range s.bundle.Keys(i18n.English) {
		if !have[k] {
			s.logger.Debug("untranslated message falls back to English", zap.String("key", k))
		}
	}
}

func (s *Server) randomKurals(n int) []kural.Kural {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.data.Random(s.rng, n)
}
