package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/san-kum/qlab/internal/chat"
	"github.com/san-kum/qlab/internal/concept"
	"github.com/san-kum/qlab/internal/logger"
	"github.com/san-kum/qlab/internal/session"
	"github.com/san-kum/qlab/internal/visualizer"
)

// Config holds server configuration
type Config struct {
	Addr        string
	FPS         int
	Temperature *float64 // nil keeps session.DefaultTemperature
	Client      chat.Client
	Log         zerolog.Logger
	// SessionTTL is how long a session without frame streams survives
	// after its last request.
	SessionTTL time.Duration
	// Origins lists extra host patterns (e.g. "lab.example.com") allowed to
	// call the API and open frame streams. Same-origin is always allowed.
	Origins []string
}

const DefaultSessionTTL = 10 * time.Minute

// Server hosts the web lab. Each browser session gets its own controller
// and visualizer.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
	frame  time.Duration

	mu       sync.RWMutex
	sessions map[string]*labSession

	stop     chan struct{}
	stopOnce sync.Once
}

// labSession pairs a controller with the visualizer it drives. The
// visualizer is single-goroutine, so every use holds mu.
type labSession struct {
	id   string
	ctrl *session.Controller

	mu       sync.Mutex
	vis      *visualizer.Visualizer
	streams  int
	lastSeen time.Time
}

func (ls *labSession) touch() {
	ls.mu.Lock()
	ls.lastSeen = time.Now()
	ls.mu.Unlock()
}

func (ls *labSession) sync() {
	sel := ls.ctrl.Selection()
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.vis.Update(sel.Topic, sel.Measured)
}

func New(cfg Config) *Server {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}

	s := &Server{
		router:   chi.NewRouter(),
		log:      logger.Component(cfg.Log, "server"),
		cfg:      cfg,
		frame:    time.Second / time.Duration(cfg.FPS),
		sessions: make(map[string]*labSession),
		stop:     make(chan struct{}),
	}

	s.setupMiddleware()
	s.setupRoutes()
	go s.reapLoop(max(cfg.SessionTTL/4, time.Second))

	// no write timeout: frame streams are long-lived
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	if len(s.cfg.Origins) == 0 {
		return
	}
	origins := make([]string, 0, 2*len(s.cfg.Origins))
	for _, host := range s.cfg.Origins {
		origins = append(origins, "http://"+host, "https://"+host)
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/", s.handleIndex)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/concepts", s.handleConcepts)
		r.Get("/comparisons", s.handleComparisons)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/select", s.handleSelect)
				r.Post("/measure", s.handleMeasure)
				r.Post("/reset", s.handleReset)
				r.Post("/ask", s.handleAsk)
				r.Get("/frames", s.handleFrames)
			})
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("starting web lab")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and every session's animations.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down web lab")
	s.stopOnce.Do(func() { close(s.stop) })
	err := s.server.Shutdown(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ls := range s.sessions {
		ls.mu.Lock()
		ls.vis.Close()
		ls.mu.Unlock()
		delete(s.sessions, id)
	}
	return err
}

func (s *Server) newSession() *labSession {
	opts := []session.Option{session.WithLogger(s.log)}
	if s.cfg.Temperature != nil {
		opts = append(opts, session.WithTemperature(*s.cfg.Temperature))
	}

	ls := &labSession{
		id:       uuid.NewString(),
		ctrl:     session.New(s.cfg.Client, opts...),
		vis:      visualizer.New(),
		lastSeen: time.Now(),
	}

	s.mu.Lock()
	s.sessions[ls.id] = ls
	s.mu.Unlock()

	s.log.Debug().Str("session", ls.id).Msg("session created")
	return ls
}

func (s *Server) lookup(r *http.Request) (*labSession, bool) {
	s.mu.RLock()
	ls, ok := s.sessions[chi.URLParam(r, "id")]
	s.mu.RUnlock()
	if ok {
		ls.touch()
	}
	return ls, ok
}

// reapLoop evicts idle sessions until Shutdown.
func (s *Server) reapLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.reap(now)
		}
	}
}

// reap closes and forgets every session that has no open frame stream and
// has not been used for longer than the TTL.
func (s *Server) reap(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, ls := range s.sessions {
		ls.mu.Lock()
		idle := ls.streams == 0 && now.Sub(ls.lastSeen) > s.cfg.SessionTTL
		if idle {
			ls.vis.Close()
		}
		ls.mu.Unlock()

		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.log.Debug().Int("evicted", evicted).Int("remaining", len(s.sessions)).Msg("reaped idle sessions")
	}
	return evicted
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// sessionView is the JSON form of a lab session.
type sessionView struct {
	ID          string            `json:"id"`
	Selection   session.Selection `json:"selection"`
	Mode        string            `json:"mode"`
	ActionLabel string            `json:"action_label,omitempty"`
	Typing      bool              `json:"typing"`
	Outcome     string            `json:"outcome,omitempty"`
	Intercepts  int               `json:"intercepts,omitempty"`
	Transcript  []session.Entry   `json:"transcript"`
}

func (ls *labSession) view() sessionView {
	sel := ls.ctrl.Selection()
	v := sessionView{
		ID:         ls.id,
		Selection:  sel,
		Mode:       concept.Mode(sel.Topic),
		Typing:     ls.ctrl.Typing(),
		Transcript: ls.ctrl.Transcript(),
	}
	if sel.Topic != concept.Idle {
		v.ActionLabel = concept.ActionLabel(sel.Topic, sel.Measured)
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if outcome, ok := ls.vis.Outcome(); ok {
		v.Outcome = outcome
	}
	v.Intercepts = ls.vis.Intercepts()
	return v
}
