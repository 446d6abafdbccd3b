package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"fleetspan/internal/auth"
	"fleetspan/internal/config"
	"fleetspan/internal/opt"
	"fleetspan/internal/store"
	"fleetspan/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Broker EventBroker
	Logger *zap.Logger
	Auth   *auth.Verifier
	// Solver holds the defaults every run starts from
	Solver opt.Config

	cfg     config.Config
	wg      sync.WaitGroup
	cancels sync.Map // runId -> context.CancelFunc
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer(cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.DBMigrate {
			if err := sp.Migrate(context.Background()); err != nil {
				return nil, err
			}
		}
		s = sp
	}
	verifier, err := auth.NewVerifier(cfg.AuthMode, cfg.AuthHMACSecret)
	if err != nil {
		return nil, err
	}
	// Broker selection
	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("api: redis broker: %w", err)
		}
		broker = rb
	}
	solver := cfg.Solver
	if solver.Iterations == 0 {
		solver = opt.DefaultConfig()
	}
	return &Server{
		Store:  s,
		Pub:    webhooks.NewPublisher(s, cfg.WebhookURL, cfg.WebhookSecret),
		Broker: broker,
		Logger: logger,
		Auth:   verifier,
		Solver: solver,
		cfg:    cfg,
	}, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.cfg.WebhookMaxAttempts, s.cfg.WebhookRPS, s.Logger.Named("webhooks"))
}

// requireAdmin writes a 401/403 problem and returns false unless the caller
// holds the admin role.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	p, err := s.Auth.Authorize(r.Header.Get("Authorization"))
	switch {
	case err == nil:
		return true
	case errors.Is(err, auth.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
	default:
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
	}
	s.Logger.Debug("admin access denied", zap.String("path", r.URL.Path), zap.String("subject", p.Subject), zap.Error(err))
	return false
}

// Close cancels running solves and waits for them to record their result.
func (s *Server) Close() {
	s.cancels.Range(func(_, v any) bool {
		v.(context.CancelFunc)()
		return true
	})
	s.wg.Wait()
}
