// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"math/big"
	"time"

	"github.com/danielhkuo/pitwall/ledger"
	"github.com/danielhkuo/pitwall/models"
)

var hundred = big.NewRat(100, 1)

// Aggregator turns ledger counters into results.
type Aggregator struct {
	ledger ledger.Client
	now    func() time.Time
}

func NewAggregator(client ledger.Client) *Aggregator {
	return &Aggregator{ledger: client, now: time.Now}
}

// SetClock replaces the time source used by ClassifyPhase.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}

// ComputeResult reads the tally and active flag of a contract. The phase is
// Active while the contract reports active, Stopped otherwise.
func (a *Aggregator) ComputeResult(ctx context.Context, contract string) (models.Result, error) {
	entries, active, err := a.read(ctx, contract)
	if err != nil {
		return models.Result{}, err
	}

	phase := models.PhaseStopped
	if active {
		phase = models.PhaseActive
	}
	r := Compute(entries, phase)
	r.ContractAddress = contract
	return r, nil
}

// ComputeElectionResult is ComputeResult with the phase also taking the
// election window into account (see ClassifyPhase).
func (a *Aggregator) ComputeElectionResult(ctx context.Context, e models.Election) (models.ElectionResult, error) {
	entries, active, err := a.read(ctx, e.ContractAddress)
	if err != nil {
		return models.ElectionResult{}, models.WithElection(err, e.ID, e.ContractAddress)
	}

	r := Compute(entries, ClassifyPhase(e, active, a.now()))
	if active {
		// Past end time but the ledger still accepts votes.
		r.Winner = nil
	}
	r.ContractAddress = e.ContractAddress
	return models.ElectionResult{Election: e, Result: r}, nil
}

func (a *Aggregator) read(ctx context.Context, contract string) ([]ledger.TallyEntry, bool, error) {
	entries, err := a.ledger.GetTally(ctx, contract)
	if err != nil {
		return nil, false, ledger.Normalize(err, "getTally", contract)
	}
	active, err := a.ledger.IsActive(ctx, contract)
	if err != nil {
		return nil, false, ledger.Normalize(err, "isActive", contract)
	}
	return entries, active, nil
}

// ClassifyPhase derives the lifecycle label of an election. A contract that
// is no longer active is Stopped. An active one is Created before its start
// time and Stopped after its end time.
func ClassifyPhase(e models.Election, active bool, now time.Time) models.Phase {
	switch {
	case !active:
		return models.PhaseStopped
	case now.Before(e.StartTime):
		return models.PhaseCreated
	case !e.EndTime.IsZero() && now.After(e.EndTime):
		return models.PhaseStopped
	}
	return models.PhaseActive
}

// Compute aggregates ledger counters. Shares are exact rationals; the
// float Percentage is derived from them last. A winner is only declared
// once the phase is Stopped and at least one vote exists; ties go to the
// lowest candidate index.
func Compute(entries []ledger.TallyEntry, phase models.Phase) models.Result {
	total := new(big.Int)
	for _, e := range entries {
		if e.Votes != nil {
			total.Add(total, e.Votes)
		}
	}

	candidates := make([]models.CandidateResult, len(entries))
	for i, e := range entries {
		votes := new(big.Int)
		if e.Votes != nil {
			votes.Set(e.Votes)
		}

		share := new(big.Rat)
		if total.Sign() > 0 {
			share.SetFrac(votes, total)
		}
		pct, _ := new(big.Rat).Mul(share, hundred).Float64()

		candidates[i] = models.CandidateResult{
			Index:      i,
			Name:       e.Name,
			Votes:      votes,
			Percentage: pct,
			Share:      share,
		}
	}

	result := models.Result{
		Candidates: candidates,
		TotalVotes: total,
		Phase:      phase,
	}

	if phase == models.PhaseStopped && total.Sign() > 0 {
		best := 0
		for i := 1; i < len(candidates); i++ {
			// Strictly greater keeps the earliest index on ties.
			if candidates[i].Votes.Cmp(candidates[best].Votes) > 0 {
				best = i
			}
		}
		w := candidates[best]
		result.Winner = &w
	}

	return result
}

// FormatPercentage renders an exact share as a percentage with prec
// decimals.
func FormatPercentage(share *big.Rat, prec int) string {
	if share == nil {
		share = new(big.Rat)
	}
	return new(big.Rat).Mul(share, hundred).FloatString(prec)
}
