// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package eligibility moves voter whitelists from the store to the ledger in
two phases.

Phase 1, RecordEligibility, resolves identities to principals and links
them to an election. It only writes to the database. Unknown identities are
reported back, not rejected.

Phase 2, SyncToLedger, submits every linked wallet to the election contract
in one transaction. Each call reads the linked set when it starts;
concurrent calls that read the same set share a single submission. A caller that gives up waiting gets KindConfirmationPending; the
submission keeps going.

A principal who is linked but not yet synced can see the election but the
ledger refuses their vote with KindNotAuthorized.
*/
package eligibility
