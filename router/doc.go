// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the pitwall API.

	mux := router.NewRouter(store, ledgerClient, cfg)

NewRouter builds the services (provisioning, eligibility, access, tally) on
top of the store and ledger client, then registers the handlers.

# Endpoints

Health:

	GET /health

Election management (administrator token):

	POST /api/admin/elections                - Deploy and record an election
	GET  /api/admin/elections                - Elections I created
	POST /api/admin/elections/{id}/whitelist - Record voter identities
	POST /api/admin/elections/{id}/authorize - Authorize whitelisted wallets on the ledger
	POST /api/admin/elections/{id}/stop      - Stop voting

Voting (any principal token):

	GET  /api/elections                  - Elections I am whitelisted for
	GET  /api/elections/{id}             - Election and candidates
	GET  /api/elections/{id}/results     - Tally, phase and winner
	GET  /api/elections/{id}/vote-status - Whether I have voted
	POST /api/elections/{id}/vote        - Cast a ballot

Every /api route is wrapped with WithLogging and WithPrincipal; admin routes
add RequireAdmin.
*/
package router
