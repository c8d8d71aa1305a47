// Package api provides the HTTP surface of the reminder service: a public
// status page, the Twilio inbound webhook, and token-gated admin endpoints
// for roster management, on-demand sends, and health analytics.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/meds"
	"github.com/zhanghealth/zhanghealth/internal/messaging"
	"github.com/zhanghealth/zhanghealth/internal/secrets"
	"github.com/zhanghealth/zhanghealth/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds graceful shutdown on exit.
const DefaultShutdownTimeout = 10 * time.Second

// AdminTokenHeader carries the admin token on /api/ requests.
const AdminTokenHeader = "X-Admin-Token"

// SignatureValidator checks an inbound webhook signature. The live Twilio
// client implements it; it is nil in dry-run mode and validation is skipped.
type SignatureValidator interface {
	ValidateSignature(url string, params map[string]string, signature string) bool
}

// Opts holds API server configuration.
type Opts struct {
	Addr       string
	WebhookURL string
	DryRun     bool
	Validator  SignatureValidator
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithWebhookURL sets the public webhook URL used for signature validation.
func WithWebhookURL(url string) Option {
	return func(o *Opts) { o.WebhookURL = url }
}

// WithDryRun marks the server as running without live Twilio credentials.
func WithDryRun() Option {
	return func(o *Opts) { o.DryRun = true }
}

// WithSignatureValidator enables Twilio webhook signature validation.
func WithSignatureValidator(v SignatureValidator) Option {
	return func(o *Opts) { o.Validator = v }
}

// Server wires the HTTP handlers to the messaging, store, and analytics
// modules.
type Server struct {
	addr       string
	webhookURL string
	dryRun     bool
	validator  SignatureValidator

	msgService messaging.Service
	members    *store.MemberStore
	st         store.Store
	meds       *meds.Manager
	reply      *messaging.ReplyHandler
	auth       *secrets.AdminAuth

	startedAt time.Time
}

// NewServer builds an API server.
func NewServer(msgService messaging.Service, members *store.MemberStore, st store.Store, medsManager *meds.Manager, reply *messaging.ReplyHandler, auth *secrets.AdminAuth, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		addr:       cfg.Addr,
		webhookURL: cfg.WebhookURL,
		dryRun:     cfg.DryRun,
		validator:  cfg.Validator,
		msgService: msgService,
		members:    members,
		st:         st,
		meds:       medsManager,
		reply:      reply,
		auth:       auth,
		startedAt:  time.Now().UTC(),
	}
}

// Handler returns the routed HTTP handler; exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/webhook/twilio", s.twilioWebhookHandler)
	mux.Handle("/api/", s.requireAdminToken(http.HandlerFunc(s.apiHandler)))
	return mux
}

// Run serves HTTP until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.addr, "dry_run", s.dryRun)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: graceful shutdown failed", "error", err)
			return err
		}
		slog.Info("Server.Run: API server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
