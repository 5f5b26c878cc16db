// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a stable error category reported to callers.
type Kind string

const (
	// KindInvalidElectionSpec rejects bad input before any external call.
	KindInvalidElectionSpec Kind = "INVALID_ELECTION_SPEC"

	// KindLedgerUnavailable is a transient node or network failure.
	KindLedgerUnavailable Kind = "LEDGER_UNAVAILABLE"

	// KindLedgerRejected is a revert or contract-level refusal.
	KindLedgerRejected Kind = "LEDGER_REJECTED"

	KindElectionNotFound Kind = "ELECTION_NOT_FOUND"
	KindNoEligibleVoters Kind = "NO_ELIGIBLE_VOTERS"
	KindForbidden        Kind = "FORBIDDEN"

	// Ledger state conflicts, surfaced verbatim.
	KindAlreadyVoted   Kind = "ALREADY_VOTED"
	KindNotAuthorized  Kind = "NOT_AUTHORIZED"
	KindVotingClosed   Kind = "VOTING_CLOSED"
	KindAlreadyStopped Kind = "ALREADY_STOPPED"

	// KindInconsistentState means the ledger accepted a deployment that the
	// store then failed to record. Requires manual reconciliation.
	KindInconsistentState Kind = "INCONSISTENT_STATE"

	// KindConfirmationPending means the caller stopped waiting for a
	// submitted transaction. It may still finalize.
	KindConfirmationPending Kind = "CONFIRMATION_PENDING"

	// KindInternal covers store failures and anything unclassified.
	KindInternal Kind = "INTERNAL"
)

// Error is the structured failure returned by every core operation.
type Error struct {
	Kind    Kind
	Message string

	ElectionID      string
	ContractAddress string
	TxHash          string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)

	var ctx []string
	if e.ElectionID != "" {
		ctx = append(ctx, "election="+e.ElectionID)
	}
	if e.ContractAddress != "" {
		ctx = append(ctx, "contract="+e.ContractAddress)
	}
	if e.TxHash != "" {
		ctx = append(ctx, "tx="+e.TxHash)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k})
// works as a kind test.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether repeating the whole operation may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindLedgerUnavailable, KindConfirmationPending:
		return true
	}
	return false
}

// NewError builds an Error with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error around a cause.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// WithElection annotates err with election context if it is an *Error.
// The original value is copied; the input is not modified.
func WithElection(err error, electionID, contractAddress string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	c := *e
	if c.ElectionID == "" {
		c.ElectionID = electionID
	}
	if c.ContractAddress == "" {
		c.ContractAddress = contractAddress
	}
	return &c
}
