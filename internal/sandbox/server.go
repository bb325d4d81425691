// Package sandbox is an in-memory stand-in for the content API. It speaks
// the same routes and JSON shapes so the client can be demoed and tested
// without the hosted service, and it exposes fault injection hooks for the
// failure paths the client has to handle.
package sandbox

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/logging"
)

// Server wraps the HTTP listener and handlers backing the sandbox API.
type Server struct {
	settings Settings
	logger   *slog.Logger
	clock    func() time.Time
	secret   []byte
	validate *validator.Validate
	data     *store

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	epoch    int
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger routes request logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock allows tests to control timestamps and trial expiry.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAccount replaces the default demo account.
func WithAccount(account Account) Option {
	return func(s *Server) {
		s.data.account = account
	}
}

// NewServer prepares a sandbox server using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	settings.normalize()
	s := &Server{
		settings: settings,
		logger:   logging.Discard(),
		clock:    func() time.Time { return time.Now().UTC() },
		secret:   newSecret(),
		validate: validator.New(),
	}
	s.data = newStore(DefaultAccount, s.now())
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	// the trial starts relative to the configured clock
	s.data.billing.trialEnd = s.now().Add(TrialDays * 24 * time.Hour)
	return s
}

// Handler returns the routed API. Tests mount it on httptest servers.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if s.settings.Latency > 0 {
		r.Use(s.delay)
	}
	r.Get("/static/images/{name}", s.handleStaticImage)
	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/content/insurance-types", s.handleInsuranceTypes)
		r.Get("/content/tones", s.handleTones)
		r.Get("/subscription/pricing", s.handlePricing)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/auth/me", s.handleMe)
			r.Get("/content/schedules", s.handleListSchedules)
			r.Get("/content/schedules/{id}", s.handleGetSchedule)
			r.Delete("/content/schedules/{id}", s.handleDeleteSchedule)
			r.Get("/content/current-week", s.handleCurrentWeek)
			r.Get("/images/download-image/{postID}", s.handleDownloadImage)
			r.Get("/subscription/status", s.handleStatus)
			r.Post("/subscription/create-checkout-session", s.handleCheckout)
			r.Post("/subscription/portal", s.handlePortal)
			r.Post("/subscription/cancel-subscription", s.handleCancel)
			r.Post("/subscription/reactivate-subscription", s.handleReactivate)

			r.Group(func(r chi.Router) {
				r.Use(s.requireSubscription)
				r.Post("/content/generate-schedule", s.handleGenerateSchedule)
				r.Post("/images/generate-image/{postID}", s.handleGenerateImage)
				r.Post("/images/generate-all-images/{scheduleID}", s.handleGenerateAllImages)
				r.Post("/images/regenerate-image/{postID}", s.handleRegenerateImage)
			})
		})
	})
	return r
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("sandbox: server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("sandbox: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("sandbox: listen %s: %w", addr, err)
	}
	s.listener = listener
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("sandbox serve failed", logging.Err(err))
		}
	}()
	s.logger.Info("sandbox listening", slog.String("addr", listener.Addr().String()))
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the scheme and host:port of the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		addr = s.settings.Address()
	}
	return "http://" + addr
}

// APIURL is the root the client should be pointed at.
func (s *Server) APIURL() string {
	return s.BaseURL() + APIPrefix
}

// Seed stores a schedule directly, bypassing the subscription gate.
func (s *Server) Seed(req content.GenerationRequest) content.Schedule {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	return s.data.create(req, s.now())
}

// AttachImage gives a post an image without counting as a generate call.
func (s *Server) AttachImage(postID int64) bool {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	sched, idx, ok := s.data.postByID(postID)
	if !ok {
		return false
	}
	sched.Posts[idx].ImageURL = s.data.imageURL(s.BaseURL(), postID)
	return true
}

// FailImage makes image calls for postID fail with message until cleared
// with an empty message.
func (s *Server) FailImage(postID int64, message string) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if message == "" {
		delete(s.data.failImage, postID)
		return
	}
	s.data.failImage[postID] = message
}

// FailNextGeneration makes the next generate-schedule call fail. An empty
// message produces an error body with no message.
func (s *Server) FailNextGeneration(message string) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.data.failGeneration = message
	s.data.failGenerationArmed = true
}

// FailBatch makes every generate-all call fail as a whole until cleared.
func (s *Server) FailBatch(message string) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.data.failBatch = message
}

// ExpireSessions invalidates every issued session cookie.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

// SetSubscription overrides the raw status and trial end.
func (s *Server) SetSubscription(status string, trialEnd time.Time) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.data.billing.status = status
	if !trialEnd.IsZero() {
		s.data.billing.trialEnd = trialEnd
	}
}

// Calls reports how many times op was served. Ops are named after the
// route's last path segment, e.g. "generate-schedule".
func (s *Server) Calls(op string) int {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	return s.data.calls[op]
}

// Schedule returns the stored schedule with id.
func (s *Server) Schedule(id int64) (content.Schedule, bool) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	sched, ok := s.data.schedules[id]
	if !ok {
		return content.Schedule{}, false
	}
	return sched.Clone(), true
}

func (s *Server) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func (s *Server) currentEpoch() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("sandbox request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", r.Header.Get("X-Request-ID")),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(s.settings.Latency)
		defer timer.Stop()
		select {
		case <-r.Context().Done():
			return
		case <-timer.C:
		}
		next.ServeHTTP(w, r)
	})
}

func newSecret() []byte {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return []byte("insurecontent-sandbox-secret")
	}
	return secret
}
