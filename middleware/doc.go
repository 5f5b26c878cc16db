// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (duration_ms).

# Authentication

WithPrincipal verifies the bearer token (Authorization or X-Auth-Token),
loads the principal from the store and attaches it to the context:

	h := middleware.WithPrincipal(secret, store, handler)
	p, ok := middleware.PrincipalFrom(r.Context())

RequireAdmin additionally rejects non-administrators with 403.

# Errors

WriteError renders a *models.Error with an HTTP status picked from its kind
(see StatusFor). Ledger context (contract, tx hash) and a retry hint are
included. INTERNAL causes are logged and replaced by a generic message.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}
*/
package middleware
