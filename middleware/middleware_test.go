// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/pitwall/auth"
	"github.com/danielhkuo/pitwall/models"
)

const testSecret = "middleware-secret"

func TestWithLogging_PreservesResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		body       string
	}{
		{"OK", http.StatusOK, "ok"},
		{"Created", http.StatusCreated, `{"id":"123"}`},
		{"NotFound", http.StatusNotFound, "not found"},
		{"InternalError", http.StatusInternalServerError, "error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := WithLogging(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(tc.body))
			})

			req := httptest.NewRequest("POST", "/api/test", nil)
			w := httptest.NewRecorder()

			handler(w, req)

			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}
			if w.Body.String() != tc.body {
				t.Errorf("Expected body '%s', got '%s'", tc.body, w.Body.String())
			}
		})
	}
}

func TestJSONResponse(t *testing.T) {
	w := httptest.NewRecorder()
	JSONResponse(w, http.StatusCreated, map[string]string{"message": "hello"})

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", w.Header().Get("Content-Type"))
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"message":"hello"}` {
		t.Errorf("Unexpected body '%s'", body)
	}
}

func TestWriteError(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		wantStatus    int
		wantKind      string
		wantRetryable bool
		wantMessage   string
	}{
		{
			name:       "invalid spec",
			err:        models.NewError(models.KindInvalidElectionSpec, "title is required"),
			wantStatus: http.StatusBadRequest,
			wantKind:   "INVALID_ELECTION_SPEC",
		},
		{
			name:       "not found",
			err:        models.NewError(models.KindElectionNotFound, "election not found"),
			wantStatus: http.StatusNotFound,
			wantKind:   "ELECTION_NOT_FOUND",
		},
		{
			name:       "forbidden",
			err:        models.NewError(models.KindForbidden, "nope"),
			wantStatus: http.StatusForbidden,
			wantKind:   "FORBIDDEN",
		},
		{
			name:       "already voted",
			err:        models.NewError(models.KindAlreadyVoted, "already voted"),
			wantStatus: http.StatusConflict,
			wantKind:   "ALREADY_VOTED",
		},
		{
			name:          "ledger unavailable",
			err:           models.NewError(models.KindLedgerUnavailable, "node down"),
			wantStatus:    http.StatusServiceUnavailable,
			wantKind:      "LEDGER_UNAVAILABLE",
			wantRetryable: true,
		},
		{
			name:          "confirmation pending",
			err:           models.NewError(models.KindConfirmationPending, "still waiting"),
			wantStatus:    http.StatusAccepted,
			wantKind:      "CONFIRMATION_PENDING",
			wantRetryable: true,
		},
		{
			name:        "plain error is internal and hidden",
			err:         errors.New("pq: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantKind:    "INTERNAL",
			wantMessage: "internal error",
		},
		{
			name:       "inconsistent state keeps its message",
			err:        models.NewError(models.KindInconsistentState, "contract deployed but not recorded"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   "INCONSISTENT_STATE",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)

			if w.Code != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, w.Code)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}
			if resp.Kind != tc.wantKind {
				t.Errorf("Expected kind '%s', got '%s'", tc.wantKind, resp.Kind)
			}
			if resp.Retryable != tc.wantRetryable {
				t.Errorf("Expected retryable %v, got %v", tc.wantRetryable, resp.Retryable)
			}
			if tc.wantMessage != "" && resp.Message != tc.wantMessage {
				t.Errorf("Expected message '%s', got '%s'", tc.wantMessage, resp.Message)
			}
		})
	}
}

func TestWriteError_CarriesLedgerContext(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, &models.Error{
		Kind:            models.KindLedgerRejected,
		Message:         "reverted",
		ContractAddress: "0xabc",
		TxHash:          "0xdef",
	})

	var resp models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if resp.ContractAddress != "0xabc" || resp.TxHash != "0xdef" {
		t.Errorf("Expected ledger context, got contract=%q tx=%q", resp.ContractAddress, resp.TxHash)
	}
}

type fakePrincipals map[string]models.Principal

func (f fakePrincipals) GetPrincipal(ctx context.Context, id string) (models.Principal, error) {
	p, ok := f[id]
	if !ok {
		return models.Principal{}, errors.New("not found")
	}
	return p, nil
}

func TestWithPrincipal(t *testing.T) {
	admin := models.Principal{ID: "admin-1", Identity: "toto@example.com", IsAdmin: true}
	principals := fakePrincipals{admin.ID: admin}

	valid, err := auth.IssueToken(admin, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	stranger, err := auth.IssueToken(models.Principal{ID: "ghost"}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	testCases := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"bearer token", "Authorization", "Bearer " + valid, http.StatusOK},
		{"x-auth-token", "X-Auth-Token", valid, http.StatusOK},
		{"missing token", "", "", http.StatusUnauthorized},
		{"bad token", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"unknown principal", "X-Auth-Token", stranger, http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got models.Principal
			handler := WithPrincipal(testSecret, principals, func(w http.ResponseWriter, r *http.Request) {
				got, _ = PrincipalFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/api/elections", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			w := httptest.NewRecorder()
			handler(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("Expected status %d, got %d", tc.wantStatus, w.Code)
			}
			if tc.wantStatus == http.StatusOK && got != admin {
				t.Errorf("Expected principal %+v, got %+v", admin, got)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	testCases := []struct {
		name       string
		principal  *models.Principal
		wantStatus int
	}{
		{"admin", &models.Principal{ID: "a", IsAdmin: true}, http.StatusNoContent},
		{"voter", &models.Principal{ID: "v"}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/admin/elections", nil)
			if tc.principal != nil {
				req = req.WithContext(ContextWithPrincipal(req.Context(), *tc.principal))
			}
			w := httptest.NewRecorder()
			handler(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, w.Code)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	corsHandler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("handled"))
	}))

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/api/elections", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()

		corsHandler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if w.Body.String() != "" {
			t.Errorf("Expected empty body for preflight, got '%s'", w.Body.String())
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
			t.Error("Expected Access-Control-Allow-Origin to match request origin")
		}
		allowed := w.Header().Get("Access-Control-Allow-Headers")
		for _, h := range []string{"Authorization", "X-Auth-Token", "Content-Type"} {
			if !strings.Contains(allowed, h) {
				t.Errorf("Expected %s in allowed headers", h)
			}
		}
	})

	t.Run("no origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/elections", nil)
		w := httptest.NewRecorder()

		corsHandler.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("Expected Access-Control-Allow-Origin to default to '*'")
		}
		if w.Body.String() != "handled" {
			t.Error("Expected next handler to be called")
		}
	})
}

func TestClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, "127.0.0.1:1", "203.0.113.195"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.50"}, "10.0.0.1:12345", "203.0.113.50"},
		{"remote with port", nil, "192.168.1.50:54321", "192.168.1.50"},
		{"remote without port", nil, "192.168.1.50", "192.168.1.50"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			if got := ClientIP(req); got != tc.expectedIP {
				t.Errorf("Expected IP '%s', got '%s'", tc.expectedIP, got)
			}
		})
	}
}
