// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/pitwall/access"
	"github.com/danielhkuo/pitwall/cliparse"
	"github.com/danielhkuo/pitwall/eligibility"
	"github.com/danielhkuo/pitwall/handlers"
	"github.com/danielhkuo/pitwall/ledger"
	"github.com/danielhkuo/pitwall/middleware"
	"github.com/danielhkuo/pitwall/provisioning"
	"github.com/danielhkuo/pitwall/store"
	"github.com/danielhkuo/pitwall/tally"
)

func NewRouter(st *store.Store, client ledger.Client, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Services
	prov := provisioning.NewService(st, client, cfg.ConfirmTimeout)
	elig := eligibility.NewService(st, client, cfg.ConfirmTimeout)
	gate := access.NewGate(st, client)
	agg := tally.NewAggregator(client)

	// Handlers
	electionHandler := handlers.NewElectionHandler(prov, elig, gate)
	votingHandler := handlers.NewVotingHandler(gate, agg, cfg.ConfirmTimeout)

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.WithPrincipal(cfg.JWTSecret, st, h))
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return authed(middleware.RequireAdmin(h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Election management (admin)
	mux.HandleFunc("POST /api/admin/elections", admin(electionHandler.CreateElection))
	mux.HandleFunc("GET /api/admin/elections", admin(electionHandler.MyCreated))
	mux.HandleFunc("POST /api/admin/elections/{id}/whitelist", admin(electionHandler.RecordWhitelist))
	mux.HandleFunc("POST /api/admin/elections/{id}/authorize", admin(electionHandler.AuthorizeOnChain))
	mux.HandleFunc("POST /api/admin/elections/{id}/stop", admin(electionHandler.StopElection))

	// Voter views
	mux.HandleFunc("GET /api/elections", authed(votingHandler.MyElections))
	mux.HandleFunc("GET /api/elections/{id}", authed(votingHandler.Details))
	mux.HandleFunc("GET /api/elections/{id}/results", authed(votingHandler.Results))
	mux.HandleFunc("GET /api/elections/{id}/vote-status", authed(votingHandler.VoteStatus))
	mux.HandleFunc("POST /api/elections/{id}/vote", authed(votingHandler.CastVote))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pitwall API v1"))
	})

	return mux
}
