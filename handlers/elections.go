// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"net/http"

	"github.com/danielhkuo/pitwall/access"
	"github.com/danielhkuo/pitwall/eligibility"
	"github.com/danielhkuo/pitwall/middleware"
	"github.com/danielhkuo/pitwall/models"
	"github.com/danielhkuo/pitwall/provisioning"
)

// ElectionHandler serves the administrator side of the lifecycle.
type ElectionHandler struct {
	provisioning *provisioning.Service
	eligibility  *eligibility.Service
	gate         *access.Gate
}

func NewElectionHandler(prov *provisioning.Service, elig *eligibility.Service, gate *access.Gate) *ElectionHandler {
	return &ElectionHandler{provisioning: prov, eligibility: elig, gate: gate}
}

// CreateElection handles POST /api/admin/elections
func (h *ElectionHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.PrincipalFrom(r.Context())

	var req models.CreateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	names := make([]string, len(req.Candidates))
	for i, c := range req.Candidates {
		names[i] = c.Name
	}

	created, err := h.provisioning.CreateElection(r.Context(), admin, provisioning.ElectionSpec{
		Title:       req.Title,
		Description: req.Description,
		Candidates:  names,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, created)
}

// RecordWhitelist handles POST /api/admin/elections/{id}/whitelist
func (h *ElectionHandler) RecordWhitelist(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	if electionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "election_id is required")
		return
	}
	if !h.ownedBy(w, r, electionID) {
		return
	}

	var req models.WhitelistRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.VoterIdentities) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "voter_identities is required")
		return
	}

	outcome, err := h.eligibility.RecordEligibility(r.Context(), electionID, req.VoterIdentities)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.WhitelistResponse{
		ResolvedCount: outcome.ResolvedCount,
		AddedCount:    outcome.AddedCount,
		Unresolved:    outcome.Unresolved,
		Message: fmt.Sprintf("Added %d of %d voters (%d already whitelisted)",
			outcome.AddedCount, outcome.ResolvedCount, outcome.ResolvedCount-outcome.AddedCount),
	})
}

// AuthorizeOnChain handles POST /api/admin/elections/{id}/authorize
func (h *ElectionHandler) AuthorizeOnChain(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	if electionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "election_id is required")
		return
	}
	if !h.ownedBy(w, r, electionID) {
		return
	}

	res, err := h.eligibility.SyncToLedger(r.Context(), electionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.AuthorizeResponse{
		ContractAddress: res.ContractAddress,
		AuthorizedCount: len(res.Wallets),
		TxHash:          res.Receipt.TxHash,
		Message:         fmt.Sprintf("Authorized %d wallets on the ledger", len(res.Wallets)),
	})
}

// StopElection handles POST /api/admin/elections/{id}/stop
func (h *ElectionHandler) StopElection(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.PrincipalFrom(r.Context())
	electionID := r.PathValue("id")
	if electionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "election_id is required")
		return
	}

	receipt, err := h.provisioning.StopElection(r.Context(), admin, electionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.StopElectionResponse{
		ContractAddress: receipt.ContractAddress,
		TxHash:          receipt.TxHash,
	})
}

// MyCreated handles GET /api/admin/elections
func (h *ElectionHandler) MyCreated(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.PrincipalFrom(r.Context())

	elections, err := h.gate.ListAdminElections(r.Context(), admin)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, elections)
}

// ownedBy writes an error and returns false unless the caller created the
// election.
func (h *ElectionHandler) ownedBy(w http.ResponseWriter, r *http.Request, electionID string) bool {
	admin, _ := middleware.PrincipalFrom(r.Context())

	e, err := h.gate.Election(r.Context(), admin, electionID)
	if err != nil {
		middleware.WriteError(w, err)
		return false
	}
	if e.AdminID != admin.ID {
		middleware.WriteError(w, &models.Error{Kind: models.KindForbidden, Message: "only the creating administrator may manage this election", ElectionID: electionID})
		return false
	}
	return true
}
