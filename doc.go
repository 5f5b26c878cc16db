// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the pitwall API server.

pitwall runs elections across two sources of truth: a SQL store that owns
identities, whitelists and election metadata, and a smart-contract ledger
that owns voting rights, ballots and counts.

# Starting the Server

	DATABASE_URL=pitwall.db JWT_SECRET=... go run .

Against a chain:

	LEDGER_MODE=evm LEDGER_RPC_URL=http://localhost:8545 \
	LEDGER_PRIVATE_KEY=... LEDGER_FACTORY_ADDRESS=0x... \
	DATABASE_TYPE=postgres DATABASE_URL=postgres://... go run .

See package cliparse for every setting.

# Architecture

  - provisioning: deploy-then-record election creation
  - eligibility: whitelist recording and ledger authorization
  - access: who may see an election, vote status, ballots
  - tally: results and winner from ledger counters
  - ledger: the Client interface, its EVM and in-memory implementations
  - store, db: SQL persistence and schema
  - handlers, router, middleware: HTTP surface
  - auth: principal tokens and IDs
  - cliparse: configuration

The admin CLI lives in cmd/pitwallctl.
*/
package main
