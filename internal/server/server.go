package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/applyai/internal/applications"
	"github.com/jonathan/applyai/internal/config"
	"github.com/jonathan/applyai/internal/db"
	"github.com/jonathan/applyai/internal/dispatch"
	"github.com/jonathan/applyai/internal/jobpost"
	"github.com/jonathan/applyai/internal/notify"
	"github.com/jonathan/applyai/internal/profiles"
	"github.com/jonathan/applyai/internal/server/middleware"
	"github.com/jonathan/applyai/internal/server/ratelimit"
	"github.com/jonathan/applyai/internal/usage"
	"github.com/rs/cors"
)

// DefaultEventInterval is how often the status stream re-reads an application.
const DefaultEventInterval = 2 * time.Second

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	db         *db.DB
	dispatcher dispatch.Dispatcher

	rateLimiter   ratelimit.Limiter
	jwtService    *JWTService
	authHandler   *AuthHandler
	applications  *applications.Service
	profiles      *profiles.Service
	notifier      *notify.Service
	importer      *jobpost.Importer
	webhookSecret string
	corsOrigins   []string
	eventInterval time.Duration
}

// Config holds server configuration
type Config struct {
	Port int
	App  *config.Config
}

// Deps are the collaborators the HTTP layer needs. New wires them from the
// database; tests supply fakes.
type Deps struct {
	Users         UserStore
	Passwords     *config.PasswordConfig
	JWT           *JWTService
	Applications  *applications.Service
	Profiles      *profiles.Service
	Notifier      *notify.Service
	Importer      *jobpost.Importer
	Limiter       ratelimit.Limiter
	WebhookSecret string
	CORSOrigins   []string
	EventInterval time.Duration
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("server config is missing application settings")
	}
	app := cfg.App

	database, err := db.Connect(context.Background(), app.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create password config: %w", err)
	}
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		URL:     app.WebhookURL,
		Secret:  app.WebhookSecret,
		Timeout: app.WebhookTimeout,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	limiterConfig := ratelimit.LoadConfig()
	if limiterConfig.RedisURL == "" {
		limiterConfig.RedisURL = app.RedisURL
	}
	limiter, err := ratelimit.New(limiterConfig)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	s := newServer(Deps{
		Users:         database,
		Passwords:     passwordConfig,
		JWT:           NewJWTService(jwtConfig),
		Applications:  applications.NewService(database, usage.DefaultPolicies(app.FreeTierLimit), dispatcher),
		Profiles:      profiles.NewService(database),
		Notifier:      notify.NewService(database, notify.LogSender{}, app.AppURL),
		Importer:      jobpost.NewImporter(jobpost.NewFetcher(0)),
		Limiter:       limiter,
		WebhookSecret: app.WebhookSecret,
		CORSOrigins:   app.CORSAllowedOrigins,
	})
	s.db = database
	s.dispatcher = dispatcher

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the status stream holds connections open
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func newServer(d Deps) *Server {
	if d.Limiter == nil {
		d.Limiter = ratelimit.NewMemoryLimiter(&ratelimit.Config{Enabled: false})
	}
	if d.EventInterval <= 0 {
		d.EventInterval = DefaultEventInterval
	}

	s := &Server{
		rateLimiter:   d.Limiter,
		jwtService:    d.JWT,
		authHandler:   NewAuthHandler(NewUserService(d.Users, d.Passwords), d.JWT),
		applications:  d.Applications,
		profiles:      d.Profiles,
		notifier:      d.Notifier,
		importer:      d.Importer,
		webhookSecret: d.WebhookSecret,
		corsOrigins:   d.CORSOrigins,
		eventInterval: d.EventInterval,
	}
	s.handler = s.withRateLimit(s.withLogging(s.withCORS(s.routes())))
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	session := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	engine := middleware.SharedSecret(s.webhookSecret)
	auth := func(h http.HandlerFunc) http.Handler { return session(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /auth/register", s.authHandler.Register)
	mux.HandleFunc("POST /auth/login", s.authHandler.Login)
	mux.Handle("GET /auth/me", auth(s.authHandler.Me))
	mux.Handle("PUT /auth/password", auth(s.authHandler.UpdatePassword))

	mux.Handle("GET /profile", auth(s.handleGetProfile))
	mux.Handle("PUT /profile/onboarding/{step}", auth(s.handleSaveOnboardingStep))
	mux.Handle("PATCH /profile/notifications", auth(s.handleUpdateNotifications))
	mux.Handle("GET /profile/completeness", auth(s.handleCompleteness))
	mux.Handle("GET /dashboard", auth(s.handleDashboard))

	mux.Handle("POST /applications", auth(s.handleCreateApplication))
	mux.Handle("GET /applications", auth(s.handleListApplications))
	mux.Handle("GET /applications/{id}", auth(s.handleGetApplication))
	mux.Handle("PATCH /applications/{id}", auth(s.handleUpdateApplication))
	mux.Handle("PATCH /applications/{id}/documents/{type}", auth(s.handleEditDocument))
	mux.Handle("GET /applications/{id}/events", auth(s.handleApplicationEvents))
	mux.Handle("GET /usage", auth(s.handleUsage))

	mux.Handle("POST /job-postings/preview", auth(s.handlePreviewJobPosting))

	mux.Handle("POST /webhooks/generation", engine(http.HandlerFunc(s.handleGenerationCallback)))
	mux.Handle("POST /webhooks/documents-ready", engine(http.HandlerFunc(s.handleDocumentsReady)))

	return mux
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Let in-flight generation requests finish before the pool goes away.
	if w, ok := s.dispatcher.(*dispatch.Webhook); ok {
		w.Wait()
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	s.db.Close()
	log.Println("Server stopped")
	return nil
}

// withCORS applies the configured origin policy. With no origins configured
// every origin is allowed without credentials.
func (s *Server) withCORS(next http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         600,
	}
	if len(s.corsOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowCredentials = true
	}
	return cors.New(opts).Handler(next)
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(r.Context(), clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps the status stream working through the logging wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[%s] %s %d %s in %v", r.Method, r.URL.Path, rec.status, r.RemoteAddr, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// extractClientID extracts the client identifier from the request.
// X-Forwarded-For is not trusted; deployments behind a proxy should rewrite RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Round(time.Second).Seconds())
		seconds = max(seconds, 1)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	writeJSON(w, http.StatusTooManyRequests, response)
}
