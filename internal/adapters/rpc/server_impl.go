package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shadowvest/go-backend/internal/app"
	"shadowvest/go-backend/internal/config"
	"shadowvest/go-backend/internal/crypto/keyenc"
	"shadowvest/go-backend/internal/metrics"
	"shadowvest/go-backend/internal/platform/ratelimiter"
	"shadowvest/go-backend/internal/registry"
)

const (
	DefaultRPCAddr  = "127.0.0.1:8787"
	rpcTokenHeader  = "X-SV-RPC-Token"
	shutdownTimeout = 5 * time.Second
)

// StealthService is the part of app.Service the transport needs.
type StealthService interface {
	Status(ctx context.Context) (app.ServiceStatus, error)
	CreateKeystore(ctx context.Context, passphrase string) (app.KeystoreInfo, error)
	ImportKeystore(ctx context.Context, mnemonic, passphrase string) (app.KeystoreInfo, error)
	Unlock(ctx context.Context, passphrase string) (app.KeystoreInfo, error)
	Lock()
	GenerateMetaKeys(ctx context.Context, withMnemonic bool) (app.GeneratedMeta, error)
	DeriveStealthAddress(ctx context.Context, req app.DeriveRequest) (app.DeriveResult, error)
	CheckOwnership(ctx context.Context, req app.OwnershipRequest) (bool, error)
	RecoverSigningKey(ctx context.Context, req app.OwnershipRequest) (app.RecoveredKey, error)
	SignClaim(ctx context.Context, req app.ClaimRequest) (app.SignedClaim, error)
	ComputeNullifier(ctx context.Context, req app.NullifierRequest) (app.NullifierStatus, error)
	AuthorizeClaim(ctx context.Context, req app.AuthorizeRequest) (app.ClaimReceipt, error)
	ScanEvents(ctx context.Context, req app.ScanRequest) (app.ScanReport, error)
	DecryptPayload(ctx context.Context, req app.DecryptRequest) (app.DecryptedPayload, error)
	RegisterMeta(ctx context.Context, req app.MetaRequest) (registry.MetaRecord, error)
	UpdateMeta(ctx context.Context, req app.MetaRequest) (registry.MetaRecord, error)
	DeactivateMeta(ctx context.Context, owner keyenc.KeyParam) (registry.MetaRecord, error)
	GetMeta(ctx context.Context, owner keyenc.KeyParam) (registry.MetaRecord, error)
	ListMeta(ctx context.Context) ([]registry.MetaRecord, error)
}

type Server struct {
	httpServer   *http.Server
	service      StealthService
	logger       *slog.Logger
	metrics      *metrics.Metrics
	rpcToken     string
	requireRPC   bool
	maxBodyBytes int64
	rpcLimiter   *ratelimiter.MapLimiter
}

// NewServer wires the handlers. cfg is expected to have passed
// config.Validate; a nil logger falls back to slog.Default.
func NewServer(cfg config.RPCConfig, svc StealthService, logger *slog.Logger, m *metrics.Metrics) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultRPCAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxRPCBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		service:      svc,
		logger:       logger,
		metrics:      m,
		rpcToken:     strings.TrimSpace(cfg.Token),
		requireRPC:   cfg.RequireAuth,
		maxBodyBytes: cfg.MaxBodyBytes,
		rpcLimiter:   ratelimiter.New(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute),
	}
	if s.rpcToken == "" && !s.requireRPC {
		logger.Warn("rpc token is not set; RPC auth disabled", "component", "rpc")
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	if m != nil {
		mux.Handle("/metrics", s.protect(m.Handler()))
	}
	return s
}

// Handler exposes the mux for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Addr() string { return s.httpServer.Addr }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()
	s.logger.Info("rpc listening", "component", "rpc", "addr", s.httpServer.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.handleHealth(w, r)
}

func (s *Server) HandleRPC(w http.ResponseWriter, r *http.Request) {
	s.handleRPC(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.applyCORS(w, r) {
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorizeRPC(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin != "" && !isAllowedOrigin(origin) {
		http.Error(w, "origin is not allowed", http.StatusForbidden)
		return false
	}
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.Header().Set("Vary", "Origin")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, "+rpcTokenHeader)
	return true
}

func (s *Server) authorizeRPC(w http.ResponseWriter, r *http.Request) bool {
	if s.rpcToken == "" && !s.requireRPC {
		return true
	}
	token := s.extractRPCToken(r)
	if s.rpcToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.rpcToken)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) extractRPCToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get(rpcTokenHeader))
	if token != "" {
		return token
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}

func isAllowedOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.TrimSpace(u.Hostname()) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
