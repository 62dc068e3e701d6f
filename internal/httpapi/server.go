package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/msavelyev/calhub/internal/common"
	"github.com/msavelyev/calhub/internal/logging"
	"github.com/msavelyev/calhub/internal/models"
	"github.com/msavelyev/calhub/internal/provider"
	"github.com/msavelyev/calhub/internal/repositories/users"
)

// VaultService is the vault surface the API needs.
type VaultService interface {
	UnlockOrCreate(ctx context.Context, userID models.UserID, password []byte) error
	SetItem(ctx context.Context, userID models.UserID, providerKey string, creds any) error
}

// Syncer triggers an on-demand pass for one user.
type Syncer interface {
	SyncUser(ctx context.Context, userID models.UserID) error
}

// AuthService runs the login handshake.
type AuthService interface {
	BeginLogin() (authURL, state string)
	CompleteLogin(ctx context.Context, state, code string) (models.UserID, error)
}

// Server is the HTTP trigger surface. It parses and authenticates requests,
// delegates to the services and maps sentinel errors to status codes.
type Server struct {
	log           logging.Logger
	vault         VaultService
	syncer        Syncer
	auth          AuthService
	secret        string
	tokenValidity time.Duration
	router        chi.Router
}

func NewServer(log logging.Logger, vault VaultService, sync Syncer, auth AuthService, users users.Repository, secret string, tokenValidity time.Duration) *Server {
	s := &Server{
		log:           log,
		vault:         vault,
		syncer:        sync,
		auth:          auth,
		secret:        secret,
		tokenValidity: tokenValidity,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/auth/google/login", s.handleLogin)
	r.Get("/auth/google/callback", s.handleCallback)

	r.Group(func(r chi.Router) {
		r.Use(jwtAuth(secret, users))
		r.Post("/vault/unlock", s.handleUnlock)
		r.Post("/vault/items/{provider}", s.handleSetItem)
		r.Post("/sync/now", s.handleSyncNow)
	})

	s.router = r
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, _ := s.auth.BeginLogin()
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "missing state or code")
		return
	}

	userID, err := s.auth.CompleteLogin(r.Context(), state, code)
	if err != nil {
		s.log.Warn(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusUnauthorized, "login failed")
		return
	}

	token, err := GenerateToken(userID, s.secret, s.tokenValidity)
	if err != nil {
		s.log.Error(r.Context(), "token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.vault.UnlockOrCreate(r.Context(), userID, []byte(req.Password))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
	case errors.Is(err, common.ErrWrongPassword):
		writeError(w, http.StatusBadRequest, "wrong password")
	case errors.Is(err, common.ErrVaultCorrupt):
		s.log.Error(r.Context(), "vault blob corrupt", "user_id", userID)
		writeError(w, http.StatusInternalServerError, "vault corrupt")
	default:
		s.log.Error(r.Context(), "vault unlock failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleSetItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	kind, err := provider.ParseKind(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var creds json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = s.vault.SetItem(r.Context(), userID, string(kind), creds)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
	case errors.Is(err, common.ErrVaultLocked):
		writeError(w, http.StatusLocked, "vault locked")
	default:
		s.log.Error(r.Context(), "vault item store failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	err := s.syncer.SyncUser(r.Context(), userID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusConflict, "no calendar bound")
	case errors.Is(err, common.ErrVaultLocked):
		writeError(w, http.StatusLocked, "vault locked")
	default:
		s.log.Error(r.Context(), "on-demand sync failed", "user_id", userID, "error", err)
		writeError(w, http.StatusBadGateway, "sync failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
