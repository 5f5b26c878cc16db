// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger is the client side of the on-chain election contracts.

# Client

Client exposes deploy, authorize, vote and stop as two-stage calls plus
three reads (tally, active flag, has-voted). A mutating call returns a
*Pending as soon as the transaction is submitted:

	p, err := client.AuthorizeAddresses(ctx, contract, wallets)
	if err != nil {
		// rejected or not submitted
	}
	outcome := p.Await(ctx)

Await yields an Outcome whose Status is Confirmed (with a Receipt), Failed
(with the ledger's reason) or still Pending when ctx ended first. Giving up
on a wait does not cancel the transaction; callers re-read state instead of
assuming failure. Confirm wraps Await with a timeout and converts the
outcome into a models.Error.

Clients never retry.

# Implementations

  - EVM: go-ethereum JSON-RPC client driving a VotingFactory contract and
    the Voting contracts it creates. One operator key signs deploy,
    authorize and stop; submissions are serialized to keep nonces ordered.
  - Memory: an in-process chain with identical rules, used for local runs
    and tests. Hold/Release and FailNext simulate slow finality and node
    failures.
*/
package ledger
