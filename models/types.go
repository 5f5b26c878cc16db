// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"math/big"
	"time"
)

// Phase is the derived lifecycle label of an election. It is never stored.
type Phase string

// Election phase constants
const (
	PhaseCreated Phase = "created"
	PhaseActive  Phase = "active"
	PhaseStopped Phase = "stopped"
)

// MinCandidates is the smallest ballot an election may be deployed with.
const MinCandidates = 2

// Request types

type CandidateInput struct {
	Name string `json:"name"`
}

type CreateElectionRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Candidates  []CandidateInput `json:"candidates"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
}

type WhitelistRequest struct {
	VoterIdentities []string `json:"voter_identities"`
}

// Response types

type WhitelistResponse struct {
	ResolvedCount int      `json:"resolved_count"`
	AddedCount    int      `json:"added_count"`
	Unresolved    []string `json:"unresolved"`
	Message       string   `json:"message"`
}

type AuthorizeResponse struct {
	ContractAddress string `json:"contract_address"`
	AuthorizedCount int    `json:"authorized_count"`
	TxHash          string `json:"tx_hash"`
	Message         string `json:"message"`
}

type StopElectionResponse struct {
	ContractAddress string `json:"contract_address"`
	TxHash          string `json:"tx_hash"`
}

type VoteStatusResponse struct {
	ElectionID string `json:"election_id"`
	Wallet     string `json:"wallet_address"`
	HasVoted   bool   `json:"has_voted"`
	Active     bool   `json:"active"`
}

// Domain types

// Principal is an authenticated actor as produced by the identity provider.
type Principal struct {
	ID            string `json:"id"`
	Identity      string `json:"identity"`
	WalletAddress string `json:"wallet_address"`
	IsAdmin       bool   `json:"is_admin"`
}

type Election struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	AdminID         string    `json:"admin_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	ContractAddress string    `json:"contract_address"`
	CreatedAt       time.Time `json:"created_at"`
}

// Candidate.Position is the index of the candidate in the ledger's candidate
// array. It is the only link between the two stores.
type Candidate struct {
	ID         string `json:"id"`
	ElectionID string `json:"election_id"`
	Name       string `json:"name"`
	Position   int    `json:"position"`
}

type ElectionWithCandidates struct {
	Election   Election    `json:"election"`
	Candidates []Candidate `json:"candidates"`
}

// EligibilityOutcome is the result of recording a batch of voter identities.
type EligibilityOutcome struct {
	ResolvedCount int
	AddedCount    int
	Unresolved    []string
}

// Result types

type CandidateResult struct {
	Index      int      `json:"index"`
	Name       string   `json:"name"`
	Votes      *big.Int `json:"votes"`
	Percentage float64  `json:"percentage"`
	// Share is the exact vote share in [0,1]; Percentage is derived from it
	// only for presentation.
	Share *big.Rat `json:"-"`
}

type Result struct {
	ContractAddress string            `json:"contract_address"`
	Candidates      []CandidateResult `json:"candidates"`
	TotalVotes      *big.Int          `json:"total_votes"`
	Phase           Phase             `json:"phase"`
	Winner          *CandidateResult  `json:"winner,omitempty"`
}

type ElectionResult struct {
	Election Election `json:"election"`
	Result   Result   `json:"result"`
}

// Error response

type ErrorResponse struct {
	Error           string `json:"error"`
	Kind            string `json:"kind,omitempty"`
	Message         string `json:"message,omitempty"`
	Retryable       bool   `json:"retryable"`
	ContractAddress string `json:"contract_address,omitempty"`
	TxHash          string `json:"tx_hash,omitempty"`
}
