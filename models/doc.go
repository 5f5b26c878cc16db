// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines domain, request, response, and error types shared by
every layer of Pit Wall.

# Domain Types

  - Principal: identity, wallet address and admin flag from the identity provider
  - Election: off-chain metadata plus the ledger contract address
  - Candidate: name and Position, the index into the on-chain candidate array
  - Result / CandidateResult: aggregated tally for one contract

Vote counts are *big.Int. The ledger reports unbounded counters and totals
are never narrowed below what it reports.

# Phases

Elections move through created → active → stopped. The phase is derived
from the ledger's active flag and the election window; it is not stored.

# Errors

Every core operation fails with an *Error carrying a stable Kind:

	if models.IsKind(err, models.KindLedgerUnavailable) {
		// retry the whole operation
	}

Error.Retryable reports whether the caller may retry. Errors that involve a
ledger contract carry its address and, when a transaction was submitted,
its hash.
*/
package models
