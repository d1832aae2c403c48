// Package httpapi exposes the local control surface: schedule CRUD,
// confirmation actions, session state, push linking, the UI state
// snapshot, and a server-sent event stream.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"medassist/internal/eventbus"
	"medassist/internal/reminder"
	"medassist/internal/schedule"
	"medassist/internal/session"
	"medassist/internal/store"
	"medassist/internal/ui"
	"medassist/pkg/logx"
)

// Config controls the API server.
//
// Security: prefer binding to localhost (default). A non-loopback bind
// without an auth token is refused.
type Config struct {
	Addr      string
	AuthToken string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LinkStore persists the push delivery target.
type LinkStore interface {
	SavePushLink(ctx context.Context, l store.PushLink) error
	GetPushLink(ctx context.Context) (store.PushLink, bool, error)
}

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	repo    *schedule.Repository
	rem     *reminder.Service
	sess    *session.Manager
	hub     *ui.Hub
	bus     eventbus.Bus
	links   LinkStore // nil when storage is disabled
	periods schedule.PeriodTimes

	ln  net.Listener
	srv *http.Server
}

func New(cfg Config, repo *schedule.Repository, rem *reminder.Service, sess *session.Manager, hub *ui.Hub, bus eventbus.Bus, links LinkStore, periods schedule.PeriodTimes, log logx.Logger) *Service {
	if periods == (schedule.PeriodTimes{}) {
		periods = schedule.DefaultPeriodTimes()
	}
	return &Service{
		cfg:     cfg,
		repo:    repo,
		rem:     rem,
		sess:    sess,
		hub:     hub,
		bus:     bus,
		links:   links,
		periods: periods,
		log:     log,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:8787"
	}
	if strings.TrimSpace(s.cfg.AuthToken) == "" && !isLoopbackAddr(addr) {
		return errors.New("httpapi: non-loopback addr requires auth_token")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.ln = ln
	s.srv = srv

	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server stopped with error", logx.Err(err))
		}
	}()

	s.log.Info("api started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", s.cfg.AuthToken != ""))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	ln := s.ln
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	if srv == nil {
		return
	}
	if ln != nil {
		_ = ln.Close()
	}
	_ = srv.Shutdown(ctx)
	_ = srv.Close()
	s.log.Info("api stopped")
}

// Addr returns the bound listen address (useful with ":0" in tests).
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Service) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	auth := func(h http.HandlerFunc) http.HandlerFunc { return s.withAuth(h) }

	mux.HandleFunc("GET /schedule", auth(s.handleListSchedule))
	mux.HandleFunc("POST /schedule", auth(s.handleCreateSchedule))
	mux.HandleFunc("PUT /schedule/{id}", auth(s.handleUpdateSchedule))
	mux.HandleFunc("DELETE /schedule/{id}", auth(s.handleDeleteSchedule))
	mux.HandleFunc("GET /schedule/export.ics", auth(s.handleExportICS))

	mux.HandleFunc("POST /confirm", auth(s.handleConfirm))
	mux.HandleFunc("POST /session", auth(s.handleSession))
	mux.HandleFunc("GET /state", auth(s.handleState))
	mux.HandleFunc("GET /events", auth(s.handleEvents))

	mux.HandleFunc("POST /push/link", auth(s.handlePushLink))
	mux.HandleFunc("GET /push/link", auth(s.handlePushLinkStatus))

	return mux
}

func (s *Service) withAuth(h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(s.cfg.AuthToken)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if ah := r.Header.Get("Authorization"); ah != "" {
			const p = "Bearer "
			if strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
				h(w, r)
				return
			}
		}
		// The EventSource API cannot set headers; accept ?token= as well.
		if got := r.URL.Query().Get("token"); got != "" && got == tok {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeErr(w, http.StatusUnauthorized, "unauthorized")
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
