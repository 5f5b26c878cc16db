// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/pitwall/auth"
	"github.com/danielhkuo/pitwall/models"
)

// WithLogging wraps a handler with request logging
func WithLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Info("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", ClientIP(r),
		)

		next(w, r)

		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// JSONResponse writes a JSON response
func JSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse writes a JSON error response
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	JSONResponse(w, statusCode, models.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// StatusFor maps an error kind to the HTTP status it is reported with.
func StatusFor(kind models.Kind) int {
	switch kind {
	case models.KindInvalidElectionSpec, models.KindNoEligibleVoters:
		return http.StatusBadRequest
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindElectionNotFound:
		return http.StatusNotFound
	case models.KindAlreadyVoted, models.KindNotAuthorized,
		models.KindVotingClosed, models.KindAlreadyStopped:
		return http.StatusConflict
	case models.KindLedgerRejected:
		return http.StatusUnprocessableEntity
	case models.KindLedgerUnavailable:
		return http.StatusServiceUnavailable
	case models.KindConfirmationPending:
		return http.StatusAccepted
	}
	return http.StatusInternalServerError
}

// WriteError reports err with its kind, retry hint and ledger context.
// Internal causes are logged, not returned.
func WriteError(w http.ResponseWriter, err error) {
	var e *models.Error
	if !errors.As(err, &e) {
		e = models.WrapError(models.KindInternal, err, "internal error")
	}

	status := StatusFor(e.Kind)
	msg := e.Message
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"kind", e.Kind,
			"election_id", e.ElectionID,
			"contract", e.ContractAddress,
			"tx", e.TxHash,
			"error", err,
		)
		if e.Kind == models.KindInternal {
			msg = "internal error"
		}
	}

	JSONResponse(w, status, models.ErrorResponse{
		Error:           http.StatusText(status),
		Kind:            string(e.Kind),
		Message:         msg,
		Retryable:       e.Retryable(),
		ContractAddress: e.ContractAddress,
		TxHash:          e.TxHash,
	})
}

// ParseJSONBody parses the request body into the given struct
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

// CORS middleware allows cross-origin requests from the frontend
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Auth-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// PrincipalStore looks up registered principals.
type PrincipalStore interface {
	GetPrincipal(ctx context.Context, id string) (models.Principal, error)
}

type principalKey struct{}

// PrincipalFrom returns the principal attached by WithPrincipal.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(models.Principal)
	return p, ok
}

// ContextWithPrincipal attaches p to ctx.
func ContextWithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// TokenFrom reads a bearer token from Authorization or X-Auth-Token.
func TokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Auth-Token"))
}

// WithPrincipal authenticates the request token and attaches the stored
// principal to the request context. Unknown principals are rejected.
func WithPrincipal(secret string, principals PrincipalStore, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := TokenFrom(r)
		if token == "" {
			ErrorResponse(w, http.StatusUnauthorized, "Missing authentication token")
			return
		}

		claimed, err := auth.ParseToken(token, secret)
		if err != nil {
			ErrorResponse(w, http.StatusUnauthorized, "Invalid authentication token")
			return
		}

		p, err := principals.GetPrincipal(r.Context(), claimed.ID)
		if err != nil {
			slog.Warn("token for unknown principal",
				"principal_id", claimed.ID,
				"remote", ClientIP(r),
				"error", err,
			)
			ErrorResponse(w, http.StatusUnauthorized, "Unknown principal")
			return
		}

		next(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	}
}

// RequireAdmin rejects principals without the administrator flag. It must
// run inside WithPrincipal.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			ErrorResponse(w, http.StatusUnauthorized, "Missing authentication token")
			return
		}
		if !p.IsAdmin {
			WriteError(w, models.NewError(models.KindForbidden, "administrators only"))
			return
		}
		next(w, r)
	}
}

// ClientIP extracts the caller address for logs.
// Checks X-Forwarded-For, X-Real-IP, then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
