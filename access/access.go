// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package access decides who may see an election and submits ballots.
package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielhkuo/pitwall/ledger"
	"github.com/danielhkuo/pitwall/models"
	"github.com/danielhkuo/pitwall/store"
)

// Store is the read side of the election store used by the gate.
type Store interface {
	GetElection(ctx context.Context, id string) (models.Election, error)
	ListCandidates(ctx context.Context, electionID string) ([]models.Candidate, error)
	IsEligible(ctx context.Context, electionID, principalID string) (bool, error)
	ListElectionsForPrincipal(ctx context.Context, principalID string) ([]models.Election, error)
	ListElectionsByAdmin(ctx context.Context, adminID string) ([]models.Election, error)
}

// Gate decides what a principal may read. Visibility depends only on the
// off-chain whitelist, so a voter can see an election before the ledger
// has authorized their wallet.
type Gate struct {
	store  Store
	ledger ledger.Client
}

func NewGate(st Store, client ledger.Client) *Gate {
	return &Gate{store: st, ledger: client}
}

// CanView reports whether an eligibility link exists for the principal.
func (g *Gate) CanView(ctx context.Context, p models.Principal, electionID string) (bool, error) {
	ok, err := g.store.IsEligible(ctx, electionID, p.ID)
	if err != nil {
		return false, models.WrapError(models.KindInternal, err, "failed to check eligibility")
	}
	return ok, nil
}

// Require fails with KindForbidden unless CanView is true.
func (g *Gate) Require(ctx context.Context, p models.Principal, electionID string) error {
	ok, err := g.CanView(ctx, p, electionID)
	if err != nil {
		return err
	}
	if !ok {
		return &models.Error{Kind: models.KindForbidden, Message: "you are not allowed to view this election", ElectionID: electionID}
	}
	return nil
}

// ListVisibleElections returns the elections the principal is whitelisted
// for, ordered by end time.
func (g *Gate) ListVisibleElections(ctx context.Context, p models.Principal) ([]models.Election, error) {
	elections, err := g.store.ListElectionsForPrincipal(ctx, p.ID)
	if err != nil {
		return nil, models.WrapError(models.KindInternal, err, "failed to list elections")
	}
	return elections, nil
}

// ListAdminElections returns elections the admin created, newest first.
func (g *Gate) ListAdminElections(ctx context.Context, p models.Principal) ([]models.Election, error) {
	if !p.IsAdmin {
		return nil, models.NewError(models.KindForbidden, "administrators only")
	}
	elections, err := g.store.ListElectionsByAdmin(ctx, p.ID)
	if err != nil {
		return nil, models.WrapError(models.KindInternal, err, "failed to list elections")
	}
	return elections, nil
}

func (g *Gate) election(ctx context.Context, electionID string) (models.Election, error) {
	e, err := g.store.GetElection(ctx, electionID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Election{}, &models.Error{Kind: models.KindElectionNotFound, Message: "election not found", ElectionID: electionID}
	}
	if err != nil {
		return models.Election{}, models.WrapError(models.KindInternal, err, "failed to load election")
	}
	return e, nil
}

// ElectionDetail returns the election and its candidates in ledger order.
// The owning admin can always see it; everyone else needs a link.
func (g *Gate) ElectionDetail(ctx context.Context, p models.Principal, electionID string) (models.ElectionWithCandidates, error) {
	e, err := g.authorizedElection(ctx, p, electionID)
	if err != nil {
		return models.ElectionWithCandidates{}, err
	}

	candidates, err := g.store.ListCandidates(ctx, electionID)
	if err != nil {
		return models.ElectionWithCandidates{}, models.WrapError(models.KindInternal, err, "failed to load candidates")
	}
	return models.ElectionWithCandidates{Election: e, Candidates: candidates}, nil
}

// Election returns an election the principal may read.
func (g *Gate) Election(ctx context.Context, p models.Principal, electionID string) (models.Election, error) {
	return g.authorizedElection(ctx, p, electionID)
}

func (g *Gate) authorizedElection(ctx context.Context, p models.Principal, electionID string) (models.Election, error) {
	if err := g.Require(ctx, p, electionID); err != nil {
		// Owners read their own elections without being whitelisted.
		if !models.IsKind(err, models.KindForbidden) || !p.IsAdmin {
			return models.Election{}, err
		}
		e, lerr := g.election(ctx, electionID)
		if lerr != nil {
			return models.Election{}, lerr
		}
		if e.AdminID != p.ID {
			return models.Election{}, err
		}
		return e, nil
	}
	return g.election(ctx, electionID)
}

// VoteStatus reads the principal's has-voted flag and the contract's active
// flag from the ledger.
func (g *Gate) VoteStatus(ctx context.Context, p models.Principal, electionID string) (models.VoteStatusResponse, error) {
	if err := g.Require(ctx, p, electionID); err != nil {
		return models.VoteStatusResponse{}, err
	}
	e, err := g.election(ctx, electionID)
	if err != nil {
		return models.VoteStatusResponse{}, err
	}

	voted, err := g.ledger.HasVoted(ctx, e.ContractAddress, p.WalletAddress)
	if err != nil {
		return models.VoteStatusResponse{}, models.WithElection(ledger.Normalize(err, "hasVoted", e.ContractAddress), e.ID, e.ContractAddress)
	}
	active, err := g.ledger.IsActive(ctx, e.ContractAddress)
	if err != nil {
		return models.VoteStatusResponse{}, models.WithElection(ledger.Normalize(err, "isActive", e.ContractAddress), e.ID, e.ContractAddress)
	}

	return models.VoteStatusResponse{
		ElectionID: e.ID,
		Wallet:     p.WalletAddress,
		HasVoted:   voted,
		Active:     active,
	}, nil
}

// CastVote submits the principal's ballot and waits up to timeout for it to
// finalize. The off-chain link is checked first; the ledger then enforces
// its own authorization, window and one-vote rules.
func (g *Gate) CastVote(ctx context.Context, p models.Principal, electionID string, candidateIndex int, timeout time.Duration) (ledger.Receipt, error) {
	if err := g.Require(ctx, p, electionID); err != nil {
		return ledger.Receipt{}, err
	}
	if p.WalletAddress == "" {
		return ledger.Receipt{}, &models.Error{Kind: models.KindNotAuthorized, Message: "principal has no wallet", ElectionID: electionID}
	}
	e, err := g.election(ctx, electionID)
	if err != nil {
		return ledger.Receipt{}, err
	}

	pending, err := g.ledger.CastVote(ctx, e.ContractAddress, candidateIndex, p.WalletAddress)
	if err != nil {
		return ledger.Receipt{}, models.WithElection(ledger.Normalize(err, ledger.OpVote, e.ContractAddress), e.ID, e.ContractAddress)
	}
	receipt, err := ledger.Confirm(ctx, pending, timeout)
	if err != nil {
		return ledger.Receipt{}, models.WithElection(err, e.ID, e.ContractAddress)
	}

	slog.Info("vote cast", "election_id", e.ID, "wallet", p.WalletAddress, "tx", receipt.TxHash)
	return receipt, nil
}
