// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally aggregates on-chain vote counters into results.

	agg := tally.NewAggregator(client)
	result, err := agg.ComputeResult(ctx, contractAddress)

Counts and totals are *big.Int and shares are *big.Rat, so large counts do
not drift. Percentage is a float64 computed from the exact share.

# Winner

The ledger never names a winner. Compute picks the candidate with the most
votes, breaking ties by the lowest index (first declared), and only when
the election is stopped and has votes. A leader in an active election is not
a winner. ComputeElectionResult reports an election past its end time as
stopped, but names a winner only once the contract has closed voting.
*/
package tally
