// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/pitwall/models"
	"github.com/danielhkuo/pitwall/testutil"
)

func vote(idx int) CastVoteRequest {
	return CastVoteRequest{CandidateIndex: &idx}
}

func TestVoterViews(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateTestPrincipal(t, env.store, "race-control@example.com", true)
	voter := testutil.CreateTestPrincipal(t, env.store, "tifosi@example.com", false)
	outsider := testutil.CreateTestPrincipal(t, env.store, "outsider@example.com", false)
	election := env.createElection(t, admin)
	id := election.Election.ID
	env.whitelist(t, id, voter)

	t.Run("my elections", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.voting.MyElections(w, as(voter, "GET", "/api/elections", "", nil))

		testutil.AssertStatus(t, w, http.StatusOK)
		var elections []models.Election
		testutil.AssertJSON(t, w, &elections)
		if len(elections) != 1 || elections[0].ID != id {
			t.Errorf("Expected only election %s, got %+v", id, elections)
		}

		w = httptest.NewRecorder()
		env.voting.MyElections(w, as(outsider, "GET", "/api/elections", "", nil))
		testutil.AssertStatus(t, w, http.StatusOK)
		var none []models.Election
		testutil.AssertJSON(t, w, &none)
		if len(none) != 0 {
			t.Errorf("Expected no elections for outsider, got %d", len(none))
		}
	})

	tests := []struct {
		name       string
		principal  models.Principal
		electionID string
		wantStatus int
	}{
		{"whitelisted voter", voter, id, http.StatusOK},
		{"owning admin", admin, id, http.StatusOK},
		{"outsider", outsider, id, http.StatusForbidden},
		{"unknown election", voter, "missing", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run("details/"+tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.voting.Details(w, as(tt.principal, "GET", "/api/elections/"+tt.electionID, tt.electionID, nil))

			testutil.AssertStatus(t, w, tt.wantStatus)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var detail models.ElectionWithCandidates
			testutil.AssertJSON(t, w, &detail)
			want := []string{"Verstappen", "Hamilton", "Alonso"}
			if len(detail.Candidates) != len(want) {
				t.Fatalf("Expected %d candidates, got %d", len(want), len(detail.Candidates))
			}
			for i, c := range detail.Candidates {
				if c.Name != want[i] || c.Position != i {
					t.Errorf("Candidate %d = %s@%d, want %s@%d", i, c.Name, c.Position, want[i], i)
				}
			}
		})

		t.Run("results/"+tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.voting.Results(w, as(tt.principal, "GET", "/api/elections/"+tt.electionID+"/results", tt.electionID, nil))

			testutil.AssertStatus(t, w, tt.wantStatus)
		})
	}
}

func TestCastVote(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateTestPrincipal(t, env.store, "fia@example.com", true)
	voter := testutil.CreateTestPrincipal(t, env.store, "orange-army@example.com", false)
	unsynced := testutil.CreateTestPrincipal(t, env.store, "late@example.com", false)
	outsider := testutil.CreateTestPrincipal(t, env.store, "nobody@example.com", false)
	election := env.createElection(t, admin)
	id := election.Election.ID
	env.whitelist(t, id, voter)

	// Linked off-chain but never synced to the ledger.
	if _, err := env.elig.RecordEligibility(context.Background(), id, []string{unsynced.Identity}); err != nil {
		t.Fatalf("RecordEligibility() error = %v", err)
	}

	tests := []struct {
		name       string
		principal  models.Principal
		body       interface{}
		wantStatus int
		wantKind   models.Kind
	}{
		{"missing index", voter, map[string]string{}, http.StatusBadRequest, ""},
		{"out of range", voter, vote(7), http.StatusUnprocessableEntity, models.KindLedgerRejected},
		{"outsider", outsider, vote(0), http.StatusForbidden, models.KindForbidden},
		{"not yet authorized on ledger", unsynced, vote(0), http.StatusConflict, models.KindNotAuthorized},
		{"first vote", voter, vote(0), http.StatusOK, ""},
		{"second vote", voter, vote(1), http.StatusConflict, models.KindAlreadyVoted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.voting.CastVote(w, as(tt.principal, "POST", "/api/elections/"+id+"/vote", id, tt.body))

			testutil.AssertStatus(t, w, tt.wantStatus)
			if tt.wantKind != "" {
				testutil.AssertErrorKind(t, w, tt.wantKind)
			}
		})
	}

	w := httptest.NewRecorder()
	env.voting.VoteStatus(w, as(voter, "GET", "/api/elections/"+id+"/vote-status", id, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var status models.VoteStatusResponse
	testutil.AssertJSON(t, w, &status)
	if !status.HasVoted || !status.Active {
		t.Errorf("Expected voted and active, got %+v", status)
	}

	w = httptest.NewRecorder()
	env.voting.VoteStatus(w, as(unsynced, "GET", "/api/elections/"+id+"/vote-status", id, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	status = models.VoteStatusResponse{}
	testutil.AssertJSON(t, w, &status)
	if status.HasVoted {
		t.Error("Expected unsynced voter to have not voted")
	}
}

func TestResults(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateTestPrincipal(t, env.store, "steward@example.com", true)
	voters := []models.Principal{
		testutil.CreateTestPrincipal(t, env.store, "v1@example.com", false),
		testutil.CreateTestPrincipal(t, env.store, "v2@example.com", false),
		testutil.CreateTestPrincipal(t, env.store, "v3@example.com", false),
	}
	election := env.createElection(t, admin)
	id := election.Election.ID
	env.whitelist(t, id, voters...)

	for i, choice := range []int{1, 0, 1} {
		w := httptest.NewRecorder()
		env.voting.CastVote(w, as(voters[i], "POST", "/api/elections/"+id+"/vote", id, vote(choice)))
		testutil.AssertStatus(t, w, http.StatusOK)
	}

	fetch := func() models.ElectionResult {
		t.Helper()
		w := httptest.NewRecorder()
		env.voting.Results(w, as(voters[0], "GET", "/api/elections/"+id+"/results", id, nil))
		testutil.AssertStatus(t, w, http.StatusOK)
		var res models.ElectionResult
		testutil.AssertJSON(t, w, &res)
		return res
	}

	live := fetch()
	if live.Result.Phase != models.PhaseActive {
		t.Errorf("Expected active phase, got %s", live.Result.Phase)
	}
	if live.Result.Winner != nil {
		t.Errorf("Expected no winner while voting is open, got %+v", live.Result.Winner)
	}
	if live.Result.TotalVotes.Int64() != 3 {
		t.Errorf("Expected 3 votes, got %s", live.Result.TotalVotes)
	}

	if _, err := env.prov.StopElection(context.Background(), admin, id); err != nil {
		t.Fatalf("StopElection() error = %v", err)
	}

	final := fetch()
	if final.Result.Phase != models.PhaseStopped {
		t.Errorf("Expected stopped phase, got %s", final.Result.Phase)
	}
	if final.Result.Winner == nil || final.Result.Winner.Name != "Hamilton" {
		t.Fatalf("Expected Hamilton to win, got %+v", final.Result.Winner)
	}
	if got := final.Result.Candidates[1].Votes.Int64(); got != 2 {
		t.Errorf("Expected Hamilton to have 2 votes, got %d", got)
	}
}
