// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store is the off-chain election store: elections, candidates,
principals and eligibility links over database/sql.

Queries use $N placeholders, which both lib/pq and modernc.org/sqlite accept.

Candidates are only ever written by CreateElection, in the same transaction
as their election, so the off-chain candidate order cannot drift from the
order deployed to the ledger. There is no update or delete for candidates
or eligibility links.

AddEligibility is a set union: re-adding an existing link is a no-op.
*/
package store
