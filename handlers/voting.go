// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"time"

	"github.com/danielhkuo/pitwall/access"
	"github.com/danielhkuo/pitwall/middleware"
	"github.com/danielhkuo/pitwall/tally"
)

type VotingHandler struct {
	gate           *access.Gate
	tally          *tally.Aggregator
	confirmTimeout time.Duration
}

func NewVotingHandler(gate *access.Gate, agg *tally.Aggregator, confirmTimeout time.Duration) *VotingHandler {
	return &VotingHandler{gate: gate, tally: agg, confirmTimeout: confirmTimeout}
}

// CastVoteRequest selects a candidate by its ledger index.
type CastVoteRequest struct {
	CandidateIndex *int `json:"candidate_index"`
}

type CastVoteResponse struct {
	ElectionID string `json:"election_id"`
	TxHash     string `json:"tx_hash"`
}

// MyElections handles GET /api/elections
func (h *VotingHandler) MyElections(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	elections, err := h.gate.ListVisibleElections(r.Context(), p)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, elections)
}

// Details handles GET /api/elections/{id}
func (h *VotingHandler) Details(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	electionID := r.PathValue("id")

	detail, err := h.gate.ElectionDetail(r.Context(), p, electionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, detail)
}

// Results handles GET /api/elections/{id}/results
func (h *VotingHandler) Results(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	electionID := r.PathValue("id")

	e, err := h.gate.Election(r.Context(), p, electionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	result, err := h.tally.ComputeElectionResult(r.Context(), e)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, result)
}

// VoteStatus handles GET /api/elections/{id}/vote-status
func (h *VotingHandler) VoteStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	status, err := h.gate.VoteStatus(r.Context(), p, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, status)
}

// CastVote handles POST /api/elections/{id}/vote
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	electionID := r.PathValue("id")

	var req CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.CandidateIndex == nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "candidate_index is required")
		return
	}

	receipt, err := h.gate.CastVote(r.Context(), p, electionID, *req.CandidateIndex, h.confirmTimeout)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, CastVoteResponse{
		ElectionID: electionID,
		TxHash:     receipt.TxHash,
	})
}
