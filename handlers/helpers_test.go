// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielhkuo/pitwall/access"
	"github.com/danielhkuo/pitwall/eligibility"
	"github.com/danielhkuo/pitwall/ledger"
	"github.com/danielhkuo/pitwall/middleware"
	"github.com/danielhkuo/pitwall/models"
	"github.com/danielhkuo/pitwall/provisioning"
	"github.com/danielhkuo/pitwall/store"
	"github.com/danielhkuo/pitwall/tally"
	"github.com/danielhkuo/pitwall/testutil"
)

type testEnv struct {
	store     *store.Store
	ledger    *ledger.Memory
	prov      *provisioning.Service
	elig      *eligibility.Service
	elections *ElectionHandler
	voting    *VotingHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testutil.GetTestConfig()
	st := testutil.SetupStore(t)
	mem := testutil.SetupLedger(t)

	prov := provisioning.NewService(st, mem, cfg.ConfirmTimeout)
	elig := eligibility.NewService(st, mem, cfg.ConfirmTimeout)
	gate := access.NewGate(st, mem)

	return &testEnv{
		store:     st,
		ledger:    mem,
		prov:      prov,
		elig:      elig,
		elections: NewElectionHandler(prov, elig, gate),
		voting:    NewVotingHandler(gate, tally.NewAggregator(mem), cfg.ConfirmTimeout),
	}
}

// createElection provisions an open election owned by admin.
func (e *testEnv) createElection(t *testing.T, admin models.Principal, candidates ...string) models.ElectionWithCandidates {
	t.Helper()

	if len(candidates) == 0 {
		candidates = []string{"Verstappen", "Hamilton", "Alonso"}
	}
	now := time.Now().UTC()
	created, err := e.prov.CreateElection(context.Background(), admin, provisioning.ElectionSpec{
		Title:      "Driver of the Day",
		Candidates: candidates,
		StartTime:  now.Add(-time.Minute),
		EndTime:    now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Failed to create election: %v", err)
	}
	return created
}

// whitelist records and syncs voters for an election.
func (e *testEnv) whitelist(t *testing.T, electionID string, voters ...models.Principal) {
	t.Helper()

	identities := make([]string, len(voters))
	for i, v := range voters {
		identities[i] = v.Identity
	}
	ctx := context.Background()
	if _, err := e.elig.RecordEligibility(ctx, electionID, identities); err != nil {
		t.Fatalf("Failed to record eligibility: %v", err)
	}
	if _, err := e.elig.SyncToLedger(ctx, electionID); err != nil {
		t.Fatalf("Failed to sync eligibility: %v", err)
	}
}

// as builds a request authenticated as p, with the {id} path value set.
func as(p models.Principal, method, path, electionID string, body interface{}) *http.Request {
	req := testutil.MakeRequest(method, path, body, nil)
	if electionID != "" {
		req.SetPathValue("id", electionID)
	}
	return req.WithContext(middleware.ContextWithPrincipal(req.Context(), p))
}
