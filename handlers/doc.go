// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the pitwall API.

# Handler Types

  - ElectionHandler: administrator operations (create, whitelist, authorize, stop)
  - VotingHandler: voter views, results and ballots

Handlers take the services they drive and read the caller from the request
context (see middleware.WithPrincipal):

	electionHandler := handlers.NewElectionHandler(prov, elig, gate)
	votingHandler := handlers.NewVotingHandler(gate, agg, cfg.ConfirmTimeout)

# Election Lifecycle

	POST /api/admin/elections                 → CreateElection (deploy, then record)
	POST /api/admin/elections/{id}/whitelist  → RecordWhitelist (phase 1, store only)
	POST /api/admin/elections/{id}/authorize  → AuthorizeOnChain (phase 2, ledger)
	POST /api/admin/elections/{id}/stop       → StopElection
	GET  /api/admin/elections                 → MyCreated

Only the creating administrator may whitelist, authorize or stop.

# Voting

	GET  /api/elections                   → MyElections
	GET  /api/elections/{id}              → Details
	GET  /api/elections/{id}/results      → Results
	GET  /api/elections/{id}/vote-status  → VoteStatus
	POST /api/elections/{id}/vote         → CastVote

Visibility follows the off-chain whitelist. Whether a ballot is accepted is
up to the ledger, so a whitelisted voter who has not been authorized yet can
see an election but gets NOT_AUTHORIZED when voting.

Errors are written with middleware.WriteError.
*/
package handlers
