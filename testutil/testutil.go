// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/pitwall/auth"
	"github.com/danielhkuo/pitwall/cliparse"
	"github.com/danielhkuo/pitwall/db"
	"github.com/danielhkuo/pitwall/ledger"
	"github.com/danielhkuo/pitwall/models"
	"github.com/danielhkuo/pitwall/store"
)

// TestSecret signs tokens in tests.
const TestSecret = "test-jwt-secret"

// OperatorAccount is the ledger account memory ledgers deploy from.
const OperatorAccount = "0x00000000000000000000000000000000000000ad"

// SetupTestDB opens a private in-memory SQLite database with the full schema.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// SetupStore returns a store backed by SetupTestDB.
func SetupStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(SetupTestDB(t))
}

// SetupLedger returns a fresh memory ledger operated by OperatorAccount.
func SetupLedger(t *testing.T) *ledger.Memory {
	t.Helper()
	return ledger.NewMemory(OperatorAccount)
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3318,
		DatabaseURL:    ":memory:",
		DatabaseType:   db.TypeSQLite,
		JWTSecret:      TestSecret,
		LedgerMode:     cliparse.LedgerMemory,
		ConfirmTimeout: 2 * time.Second,
		LogLevel:       "info",
	}
}

// WalletFor derives a stable wallet address from an identity.
func WalletFor(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return "0x" + hex.EncodeToString(sum[:20])
}

// CreateTestPrincipal registers a principal with a wallet derived from its
// identity.
func CreateTestPrincipal(t *testing.T, st *store.Store, identity string, isAdmin bool) models.Principal {
	t.Helper()

	p := models.Principal{
		ID:            auth.GenerateID(),
		Identity:      identity,
		WalletAddress: WalletFor(identity),
		IsAdmin:       isAdmin,
	}
	if err := st.PutPrincipal(context.Background(), p); err != nil {
		t.Fatalf("Failed to create test principal: %v", err)
	}
	return p
}

// TokenFor issues a token for p signed with TestSecret.
func TokenFor(t *testing.T, p models.Principal) string {
	t.Helper()

	token, err := auth.IssueToken(p, TestSecret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// AuthHeaders returns request headers carrying p's token.
func AuthHeaders(t *testing.T, p models.Principal) map[string]string {
	t.Helper()
	return map[string]string{"Authorization": "Bearer " + TokenFor(t, p)}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertErrorKind decodes an error body and checks its kind.
func AssertErrorKind(t *testing.T, w *httptest.ResponseRecorder, kind models.Kind) {
	t.Helper()
	var resp models.ErrorResponse
	AssertJSON(t, w, &resp)
	if resp.Kind != string(kind) {
		t.Errorf("Expected error kind %s, got %q (%s)", kind, resp.Kind, resp.Message)
	}
}
