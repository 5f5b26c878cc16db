// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/pitwall/auth"
	"github.com/danielhkuo/pitwall/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the off-chain election store. It is safe for concurrent use;
// all state lives in the database.
type Store struct {
	db *sql.DB
}

// New wraps an open database connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

const electionColumns = `id, title, description, admin_id, start_time, end_time, contract_address, created_at`

func scanElection(row interface{ Scan(...any) error }) (models.Election, error) {
	var e models.Election
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.AdminID,
		&e.StartTime, &e.EndTime, &e.ContractAddress, &e.CreatedAt,
	)
	return e, err
}

// CreateElection inserts an election and its candidates in one transaction.
// Candidate positions are assigned from slice order and must match the order
// the names were deployed to the ledger.
func (s *Store) CreateElection(ctx context.Context, e models.Election, names []string) (models.ElectionWithCandidates, error) {
	if e.ContractAddress == "" {
		return models.ElectionWithCandidates{}, errors.New("election has no contract address")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ElectionWithCandidates{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO election (id, title, description, admin_id, start_time, end_time, contract_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.Title, e.Description, e.AdminID, e.StartTime, e.EndTime, e.ContractAddress, e.CreatedAt)
	if err != nil {
		return models.ElectionWithCandidates{}, fmt.Errorf("failed to insert election: %w", err)
	}

	candidates := make([]models.Candidate, len(names))
	for i, name := range names {
		c := models.Candidate{
			ID:         auth.GenerateID(),
			ElectionID: e.ID,
			Name:       name,
			Position:   i,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO candidate (id, election_id, name, position)
			VALUES ($1, $2, $3, $4)
		`, c.ID, c.ElectionID, c.Name, c.Position)
		if err != nil {
			return models.ElectionWithCandidates{}, fmt.Errorf("failed to insert candidate %d: %w", i, err)
		}
		candidates[i] = c
	}

	if err := tx.Commit(); err != nil {
		return models.ElectionWithCandidates{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return models.ElectionWithCandidates{Election: e, Candidates: candidates}, nil
}

// GetElection returns one election by id.
func (s *Store) GetElection(ctx context.Context, id string) (models.Election, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+electionColumns+` FROM election WHERE id = $1`, id)
	e, err := scanElection(row)
	if err == sql.ErrNoRows {
		return models.Election{}, ErrNotFound
	}
	if err != nil {
		return models.Election{}, fmt.Errorf("failed to query election: %w", err)
	}
	return e, nil
}

// ListCandidates returns an election's candidates in ledger order.
func (s *Store) ListCandidates(ctx context.Context, electionID string) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, election_id, name, position
		FROM candidate
		WHERE election_id = $1
		ORDER BY position
	`, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.ElectionID, &c.Name, &c.Position); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ListElectionsByAdmin returns elections owned by an admin, newest first.
func (s *Store) ListElectionsByAdmin(ctx context.Context, adminID string) ([]models.Election, error) {
	return s.queryElections(ctx, `
		SELECT `+electionColumns+`
		FROM election
		WHERE admin_id = $1
		ORDER BY created_at DESC, id
	`, adminID)
}

// ListElectionsForPrincipal returns elections the principal is linked to,
// ordered by end time.
func (s *Store) ListElectionsForPrincipal(ctx context.Context, principalID string) ([]models.Election, error) {
	return s.queryElections(ctx, `
		SELECT e.id, e.title, e.description, e.admin_id, e.start_time, e.end_time, e.contract_address, e.created_at
		FROM election e
		JOIN eligibility_link l ON e.id = l.election_id
		WHERE l.principal_id = $1
		ORDER BY e.end_time, e.id
	`, principalID)
}

func (s *Store) queryElections(ctx context.Context, query string, args ...any) ([]models.Election, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query elections: %w", err)
	}
	defer rows.Close()

	elections := []models.Election{}
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan election: %w", err)
		}
		elections = append(elections, e)
	}
	return elections, rows.Err()
}

// placeholders returns "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

// AddEligibility links principals to an election, ignoring links that
// already exist. Returns the number of links newly created.
func (s *Store) AddEligibility(ctx context.Context, electionID string, principalIDs []string) (int, error) {
	if len(principalIDs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	added := 0
	for _, pid := range principalIDs {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO eligibility_link (election_id, principal_id, linked_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (election_id, principal_id) DO NOTHING
		`, electionID, pid, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert eligibility link: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return added, nil
}

// IsEligible reports whether an eligibility link exists.
func (s *Store) IsEligible(ctx context.Context, electionID, principalID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM eligibility_link
			WHERE election_id = $1 AND principal_id = $2
		)
	`, electionID, principalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query eligibility: %w", err)
	}
	return exists, nil
}

// EligibleWallets returns the wallet addresses of every principal linked to
// the election, sorted for stable ledger submissions.
func (s *Store) EligibleWallets(ctx context.Context, electionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.wallet_address
		FROM principal p
		JOIN eligibility_link l ON p.id = l.principal_id
		WHERE l.election_id = $1
		ORDER BY p.wallet_address
	`, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible wallets: %w", err)
	}
	defer rows.Close()

	wallets := []string{}
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// CountElections returns the number of stored elections.
func (s *Store) CountElections(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM election`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count elections: %w", err)
	}
	return n, nil
}
