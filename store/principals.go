// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhkuo/pitwall/models"
)

// PutPrincipal records a principal produced by the identity provider.
// Rows are written once; an existing id is left untouched.
func (s *Store) PutPrincipal(ctx context.Context, p models.Principal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principal (id, identity, wallet_address, is_admin)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.Identity, p.WalletAddress, p.IsAdmin)
	if err != nil {
		return fmt.Errorf("failed to insert principal: %w", err)
	}
	return nil
}

// GetPrincipal returns a principal by id.
func (s *Store) GetPrincipal(ctx context.Context, id string) (models.Principal, error) {
	var p models.Principal
	err := s.db.QueryRowContext(ctx, `
		SELECT id, identity, wallet_address, is_admin
		FROM principal
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Identity, &p.WalletAddress, &p.IsAdmin)
	if err == sql.ErrNoRows {
		return models.Principal{}, ErrNotFound
	}
	if err != nil {
		return models.Principal{}, fmt.Errorf("failed to query principal: %w", err)
	}
	return p, nil
}

// ResolvePrincipals maps identities to principals. Identities with no
// matching principal are absent from the returned map.
func (s *Store) ResolvePrincipals(ctx context.Context, identities []string) (map[string]models.Principal, error) {
	found := make(map[string]models.Principal, len(identities))
	if len(identities) == 0 {
		return found, nil
	}

	args := make([]any, len(identities))
	for i, id := range identities {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, wallet_address, is_admin
		FROM principal
		WHERE identity IN (`+placeholders(1, len(identities))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve principals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Principal
		if err := rows.Scan(&p.ID, &p.Identity, &p.WalletAddress, &p.IsAdmin); err != nil {
			return nil, fmt.Errorf("failed to scan principal: %w", err)
		}
		found[p.Identity] = p
	}
	return found, rows.Err()
}
