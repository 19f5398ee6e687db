// Package proxy hides the vendor API key behind three local routes.
package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const (
	msgMissingAPIKey  = "API key is missing from .env"
	msgTokenFailed    = "Failed to retrieve access token"
	msgListFailed     = "Error listing sessions"
	msgStopFailed     = "Error stopping session"
	msgMissingSession = "Missing session_id"
)

// Vendor is the API-key side of the vendor REST API.
type Vendor interface {
	HasAPIKey() bool
	CreateToken(ctx context.Context) (string, error)
	ListSessions(ctx context.Context) (json.RawMessage, error)
	StopSession(ctx context.Context, sessionID string) (json.RawMessage, error)
}

type TokenHandler struct {
	Vendor Vendor
	Logger zerolog.Logger
}

func (h TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.Vendor.HasAPIKey() {
		writeText(w, http.StatusInternalServerError, msgMissingAPIKey)
		return
	}

	token, err := h.Vendor.CreateToken(r.Context())
	if err != nil {
		logFailure(h.Logger, r, err).Msg("token issuance failed")
		writeText(w, http.StatusInternalServerError, msgTokenFailed)
		return
	}
	writeText(w, http.StatusOK, token)
}

type ListSessionsHandler struct {
	Vendor Vendor
	Logger zerolog.Logger
}

func (h ListSessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.Vendor.HasAPIKey() {
		writeText(w, http.StatusInternalServerError, msgMissingAPIKey)
		return
	}

	payload, err := h.Vendor.ListSessions(r.Context())
	if err != nil {
		logFailure(h.Logger, r, err).Msg("listing sessions failed")
		writeText(w, http.StatusInternalServerError, msgListFailed)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

type StopSessionHandler struct {
	Vendor Vendor
	Logger zerolog.Logger
}

type stopSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (h StopSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.Vendor.HasAPIKey() {
		writeText(w, http.StatusInternalServerError, msgMissingAPIKey)
		return
	}

	var req stopSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		logFailure(h.Logger, r, err).Msg("malformed stop-session body")
		writeText(w, http.StatusInternalServerError, msgStopFailed)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		writeText(w, http.StatusBadRequest, msgMissingSession)
		return
	}

	payload, err := h.Vendor.StopSession(r.Context(), sessionID)
	if err != nil {
		logFailure(h.Logger, r, err).Str("session_id", sessionID).Msg("stopping session failed")
		writeText(w, http.StatusInternalServerError, msgStopFailed)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

type HealthHandler struct{}

func (HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok\n")
}

func logFailure(logger zerolog.Logger, r *http.Request, err error) *zerolog.Event {
	reqID, _ := RequestIDFrom(r.Context())
	return logger.Error().Err(err).Str("request_id", reqID).Str("path", r.URL.Path)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
