// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package eligibility

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/danielhkuo/pitwall/ledger"
	"github.com/danielhkuo/pitwall/models"
	"github.com/danielhkuo/pitwall/store"
)

// Store is the part of the election store the whitelist pipeline uses.
type Store interface {
	GetElection(ctx context.Context, id string) (models.Election, error)
	ResolvePrincipals(ctx context.Context, identities []string) (map[string]models.Principal, error)
	AddEligibility(ctx context.Context, electionID string, principalIDs []string) (int, error)
	EligibleWallets(ctx context.Context, electionID string) ([]string, error)
}

// SyncResult reports a confirmed authorization batch.
type SyncResult struct {
	ElectionID      string
	ContractAddress string
	Wallets         []string
	Receipt         ledger.Receipt
}

// Service runs the two whitelist phases. Phase 1 only touches the store and
// can be repeated freely; Phase 2 costs a ledger transaction.
type Service struct {
	store          Store
	ledger         ledger.Client
	confirmTimeout time.Duration

	// syncs collapses concurrent Phase 2 calls that read the same eligible
	// set into one submission.
	syncs singleflight.Group
}

func NewService(st Store, client ledger.Client, confirmTimeout time.Duration) *Service {
	return &Service{store: st, ledger: client, confirmTimeout: confirmTimeout}
}

func (s *Service) loadElection(ctx context.Context, electionID string) (models.Election, error) {
	election, err := s.store.GetElection(ctx, electionID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Election{}, &models.Error{Kind: models.KindElectionNotFound, Message: "election not found", ElectionID: electionID}
	}
	if err != nil {
		return models.Election{}, models.WrapError(models.KindInternal, err, "failed to load election")
	}
	return election, nil
}

// RecordEligibility is Phase 1: it links every identity that resolves to a
// principal. Unknown identities are dropped and reported back. Existing
// links are kept, so repeated calls accumulate a set union.
func (s *Service) RecordEligibility(ctx context.Context, electionID string, identities []string) (models.EligibilityOutcome, error) {
	if _, err := s.loadElection(ctx, electionID); err != nil {
		return models.EligibilityOutcome{}, err
	}

	unique := dedupe(identities)
	principals, err := s.store.ResolvePrincipals(ctx, unique)
	if err != nil {
		return models.EligibilityOutcome{}, models.WrapError(models.KindInternal, err, "failed to resolve identities")
	}

	outcome := models.EligibilityOutcome{Unresolved: []string{}}
	ids := make([]string, 0, len(principals))
	for _, identity := range unique {
		p, ok := principals[identity]
		if !ok {
			outcome.Unresolved = append(outcome.Unresolved, identity)
			continue
		}
		ids = append(ids, p.ID)
	}
	outcome.ResolvedCount = len(ids)

	added, err := s.store.AddEligibility(ctx, electionID, ids)
	if err != nil {
		return models.EligibilityOutcome{}, models.WrapError(models.KindInternal, err, "failed to record eligibility")
	}
	outcome.AddedCount = added

	slog.Info("eligibility recorded",
		"election_id", electionID,
		"resolved", outcome.ResolvedCount,
		"added", added,
		"unresolved", len(outcome.Unresolved),
	)
	return outcome, nil
}

// dedupe trims identities and drops blanks and repeats, keeping first-seen
// order.
func dedupe(identities []string) []string {
	seen := make(map[string]bool, len(identities))
	out := make([]string, 0, len(identities))
	for _, raw := range identities {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// SyncToLedger is Phase 2: it submits the full current set of eligible
// wallets to the election contract and waits for confirmation. Re-running it
// converges on the same authorized set since the ledger ignores wallets it
// already knows.
//
// The eligible set is read before joining any in-flight submission, and only
// callers that read the same set share one. A link committed before the call
// is always part of what the call authorizes.
func (s *Service) SyncToLedger(ctx context.Context, electionID string) (SyncResult, error) {
	election, err := s.loadElection(ctx, electionID)
	if err != nil {
		return SyncResult{}, err
	}
	if election.ContractAddress == "" {
		return SyncResult{}, &models.Error{Kind: models.KindElectionNotFound, Message: "election has no ledger contract", ElectionID: electionID}
	}

	wallets, err := s.store.EligibleWallets(ctx, electionID)
	if err != nil {
		return SyncResult{}, models.WrapError(models.KindInternal, err, "failed to read eligible wallets")
	}
	if len(wallets) == 0 {
		return SyncResult{}, &models.Error{
			Kind:            models.KindNoEligibleVoters,
			Message:         "no eligible voters to authorize",
			ElectionID:      electionID,
			ContractAddress: election.ContractAddress,
		}
	}
	sort.Strings(wallets)

	ch := s.syncs.DoChan(flightKey(electionID, wallets), func() (any, error) {
		return s.authorize(context.WithoutCancel(ctx), election, wallets)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return SyncResult{}, res.Err
		}
		out := res.Val.(SyncResult)
		out.Wallets = append([]string(nil), out.Wallets...)
		return out, nil
	case <-ctx.Done():
		return SyncResult{}, &models.Error{
			Kind:            models.KindConfirmationPending,
			Message:         "stopped waiting for ledger authorization; it may still complete",
			ElectionID:      electionID,
			ContractAddress: election.ContractAddress,
			Err:             ctx.Err(),
		}
	}
}

// flightKey identifies a submission by election and the exact sorted
// wallet set it carries.
func flightKey(electionID string, wallets []string) string {
	h := sha256.New()
	for _, w := range wallets {
		h.Write([]byte(w))
		h.Write([]byte{0})
	}
	return electionID + ":" + hex.EncodeToString(h.Sum(nil))
}

func (s *Service) authorize(ctx context.Context, election models.Election, wallets []string) (SyncResult, error) {
	slog.Info("authorizing voters on ledger",
		"election_id", election.ID,
		"contract", election.ContractAddress,
		"wallets", len(wallets),
	)

	pending, err := s.ledger.AuthorizeAddresses(ctx, election.ContractAddress, wallets)
	if err != nil {
		return SyncResult{}, models.WithElection(
			ledger.Normalize(err, ledger.OpAuthorize, election.ContractAddress),
			election.ID, election.ContractAddress)
	}

	receipt, err := ledger.Confirm(ctx, pending, s.confirmTimeout)
	if err != nil {
		slog.Warn("voter authorization not confirmed",
			"election_id", election.ID,
			"tx", pending.Handle.TxHash,
			"error", err,
		)
		return SyncResult{}, models.WithElection(err, election.ID, election.ContractAddress)
	}

	slog.Info("voters authorized", "election_id", election.ID, "tx", receipt.TxHash, "wallets", len(wallets))
	return SyncResult{
		ElectionID:      election.ID,
		ContractAddress: election.ContractAddress,
		Wallets:         wallets,
		Receipt:         receipt,
	}, nil
}
