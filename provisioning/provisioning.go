// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package provisioning creates and stops elections on the ledger and records
// them in the store.
package provisioning

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/pitwall/auth"
	"github.com/danielhkuo/pitwall/ledger"
	"github.com/danielhkuo/pitwall/models"
	"github.com/danielhkuo/pitwall/store"
)

// Store is the part of the election store provisioning writes to.
type Store interface {
	CreateElection(ctx context.Context, e models.Election, names []string) (models.ElectionWithCandidates, error)
	GetElection(ctx context.Context, id string) (models.Election, error)
}

// ElectionSpec is the input to CreateElection. Candidate order is the
// on-chain order.
type ElectionSpec struct {
	Title       string
	Description string
	Candidates  []string
	StartTime   time.Time
	EndTime     time.Time
}

type Service struct {
	store          Store
	ledger         ledger.Client
	confirmTimeout time.Duration
	now            func() time.Time
}

func NewService(st Store, client ledger.Client, confirmTimeout time.Duration) *Service {
	return &Service{
		store:          st,
		ledger:         client,
		confirmTimeout: confirmTimeout,
		now:            time.Now,
	}
}

// SetClock replaces the source of created_at timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Validate checks an election spec and returns the trimmed candidate names.
func Validate(spec ElectionSpec) ([]string, error) {
	if strings.TrimSpace(spec.Title) == "" {
		return nil, models.NewError(models.KindInvalidElectionSpec, "title is required")
	}
	if len(spec.Candidates) < models.MinCandidates {
		return nil, models.NewError(models.KindInvalidElectionSpec,
			"at least %d candidates are required, got %d", models.MinCandidates, len(spec.Candidates))
	}

	names := make([]string, len(spec.Candidates))
	seen := make(map[string]bool, len(spec.Candidates))
	for i, raw := range spec.Candidates {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, models.NewError(models.KindInvalidElectionSpec, "candidate %d has an empty name", i)
		}
		if seen[name] {
			return nil, models.NewError(models.KindInvalidElectionSpec, "duplicate candidate %q", name)
		}
		seen[name] = true
		names[i] = name
	}

	if spec.StartTime.IsZero() || spec.EndTime.IsZero() {
		return nil, models.NewError(models.KindInvalidElectionSpec, "start and end time are required")
	}
	if !spec.StartTime.Before(spec.EndTime) {
		return nil, models.NewError(models.KindInvalidElectionSpec, "start time must be before end time")
	}
	return names, nil
}

// CreateElection deploys the election contract, waits for confirmation and
// then records the election and its candidates.
//
// If deployment fails nothing is written. If the store write fails after a
// confirmed deployment the contract is orphaned; the returned error has kind
// KindInconsistentState and carries the contract address.
func (s *Service) CreateElection(ctx context.Context, admin models.Principal, spec ElectionSpec) (models.ElectionWithCandidates, error) {
	if !admin.IsAdmin {
		return models.ElectionWithCandidates{}, models.NewError(models.KindForbidden, "only administrators can create elections")
	}

	names, err := Validate(spec)
	if err != nil {
		return models.ElectionWithCandidates{}, err
	}

	pending, err := s.ledger.DeployElection(ctx, names, spec.StartTime, spec.EndTime)
	if err != nil {
		return models.ElectionWithCandidates{}, ledger.Normalize(err, ledger.OpDeploy, "")
	}

	receipt, err := ledger.Confirm(ctx, pending, s.confirmTimeout)
	if err != nil {
		slog.Warn("election deployment not confirmed", "tx", pending.Handle.TxHash, "error", err)
		return models.ElectionWithCandidates{}, err
	}
	if receipt.ContractAddress == "" {
		return models.ElectionWithCandidates{}, &models.Error{
			Kind:    models.KindLedgerRejected,
			Message: "deployment confirmed without a contract address",
			TxHash:  receipt.TxHash,
		}
	}

	slog.Info("election contract deployed", "contract", receipt.ContractAddress, "tx", receipt.TxHash)

	election := models.Election{
		ID:              auth.GenerateID(),
		Title:           strings.TrimSpace(spec.Title),
		Description:     spec.Description,
		AdminID:         admin.ID,
		StartTime:       spec.StartTime.UTC(),
		EndTime:         spec.EndTime.UTC(),
		ContractAddress: receipt.ContractAddress,
		CreatedAt:       s.now().UTC(),
	}

	created, err := s.store.CreateElection(ctx, election, names)
	if err != nil {
		slog.Error("deployed election contract has no store record",
			"contract", receipt.ContractAddress,
			"tx", receipt.TxHash,
			"title", election.Title,
			"error", err,
		)
		return models.ElectionWithCandidates{}, &models.Error{
			Kind:            models.KindInconsistentState,
			Message:         "election contract was deployed but could not be recorded; reconcile manually",
			ContractAddress: receipt.ContractAddress,
			TxHash:          receipt.TxHash,
			Err:             err,
		}
	}

	slog.Info("election created",
		"election_id", created.Election.ID,
		"contract", created.Election.ContractAddress,
		"candidates", len(created.Candidates),
	)
	return created, nil
}

// StopElection closes voting on-chain. Only the owning admin may stop an
// election.
func (s *Service) StopElection(ctx context.Context, admin models.Principal, electionID string) (ledger.Receipt, error) {
	election, err := s.store.GetElection(ctx, electionID)
	if errors.Is(err, store.ErrNotFound) {
		return ledger.Receipt{}, &models.Error{Kind: models.KindElectionNotFound, Message: "election not found", ElectionID: electionID}
	}
	if err != nil {
		return ledger.Receipt{}, models.WrapError(models.KindInternal, err, "failed to load election")
	}

	if !admin.IsAdmin || election.AdminID != admin.ID {
		return ledger.Receipt{}, &models.Error{Kind: models.KindForbidden, Message: "only the election's admin can stop it", ElectionID: electionID}
	}

	pending, err := s.ledger.StopElection(ctx, election.ContractAddress)
	if err != nil {
		return ledger.Receipt{}, models.WithElection(ledger.Normalize(err, ledger.OpStop, election.ContractAddress), election.ID, election.ContractAddress)
	}

	receipt, err := ledger.Confirm(ctx, pending, s.confirmTimeout)
	if err != nil {
		return ledger.Receipt{}, models.WithElection(err, election.ID, election.ContractAddress)
	}
	receipt.ContractAddress = election.ContractAddress

	slog.Info("election stopped", "election_id", election.ID, "contract", election.ContractAddress, "tx", receipt.TxHash)
	return receipt, nil
}
