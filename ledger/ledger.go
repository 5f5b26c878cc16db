// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/danielhkuo/pitwall/models"
)

// Op names a mutating ledger operation.
type Op string

const (
	OpDeploy    Op = "deploy"
	OpAuthorize Op = "authorize"
	OpVote      Op = "vote"
	OpStop      Op = "stop"
)

// Client is the narrow capability set this system needs from the chain.
// Mutating calls return once the transaction is submitted; the returned
// Pending resolves when the chain finalizes it. Implementations never retry.
type Client interface {
	DeployElection(ctx context.Context, candidateNames []string, start, end time.Time) (*Pending, error)
	AuthorizeAddresses(ctx context.Context, contract string, wallets []string) (*Pending, error)
	CastVote(ctx context.Context, contract string, candidateIndex int, voter string) (*Pending, error)
	StopElection(ctx context.Context, contract string) (*Pending, error)

	GetTally(ctx context.Context, contract string) ([]TallyEntry, error)
	IsActive(ctx context.Context, contract string) (bool, error)
	HasVoted(ctx context.Context, contract, wallet string) (bool, error)
}

// TallyEntry is one on-chain counter, index-aligned with deployment order.
type TallyEntry struct {
	Name  string
	Votes *big.Int
}

// Handle identifies a submitted transaction.
type Handle struct {
	Op       Op
	TxHash   string
	Contract string
}

// Receipt describes a finalized transaction. ContractAddress is set for
// deployments.
type Receipt struct {
	TxHash          string
	BlockNumber     uint64
	ContractAddress string
}

// Status of a submitted transaction as seen by the caller.
type Status int

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	}
	return "pending"
}

// Outcome is what a wait on a Pending produced. A Pending status means the
// caller stopped waiting; the transaction itself was not cancelled.
type Outcome struct {
	Status  Status
	Handle  Handle
	Receipt Receipt
	Err     error
}

// Pending is a submitted, not yet confirmed transaction.
type Pending struct {
	Handle Handle
	wait   func(ctx context.Context) (Receipt, error)
}

// NewPending pairs a handle with the function that waits for finality.
// wait must return ctx.Err() when ctx ends first.
func NewPending(h Handle, wait func(ctx context.Context) (Receipt, error)) *Pending {
	return &Pending{Handle: h, wait: wait}
}

// Await blocks until the transaction is finalized or ctx ends.
func (p *Pending) Await(ctx context.Context) Outcome {
	r, err := p.wait(ctx)
	switch {
	case err == nil:
		if r.TxHash == "" {
			r.TxHash = p.Handle.TxHash
		}
		return Outcome{Status: StatusConfirmed, Handle: p.Handle, Receipt: r}
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return Outcome{Status: StatusPending, Handle: p.Handle, Err: err}
	default:
		return Outcome{Status: StatusFailed, Handle: p.Handle, Err: err}
	}
}

// Result converts the outcome into a receipt or a classified error.
func (o Outcome) Result() (Receipt, error) {
	switch o.Status {
	case StatusConfirmed:
		return o.Receipt, nil
	case StatusPending:
		return Receipt{}, &models.Error{
			Kind:            models.KindConfirmationPending,
			Message:         "stopped waiting for " + string(o.Handle.Op) + " confirmation; the transaction may still finalize",
			ContractAddress: o.Handle.Contract,
			TxHash:          o.Handle.TxHash,
			Err:             o.Err,
		}
	}

	var e *models.Error
	if errors.As(o.Err, &e) {
		c := *e
		if c.TxHash == "" {
			c.TxHash = o.Handle.TxHash
		}
		if c.ContractAddress == "" {
			c.ContractAddress = o.Handle.Contract
		}
		return Receipt{}, &c
	}
	return Receipt{}, &models.Error{
		Kind:            models.KindLedgerUnavailable,
		Message:         string(o.Handle.Op) + " confirmation failed",
		ContractAddress: o.Handle.Contract,
		TxHash:          o.Handle.TxHash,
		Err:             o.Err,
	}
}

// Normalize makes sure a submission or read error is a *models.Error.
// Unclassified errors are treated as transient.
func Normalize(err error, op Op, contract string) error {
	if err == nil {
		return nil
	}
	var e *models.Error
	if errors.As(err, &e) {
		return err
	}
	return &models.Error{
		Kind:            models.KindLedgerUnavailable,
		Message:         string(op) + " failed",
		ContractAddress: contract,
		Err:             err,
	}
}

// Confirm waits up to timeout for p to finalize. A zero timeout waits as
// long as ctx allows.
func Confirm(ctx context.Context, p *Pending, timeout time.Duration) (Receipt, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Await(ctx).Result()
}
