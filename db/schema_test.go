// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"testing"
)

func TestOpen_UnsupportedType(t *testing.T) {
	if _, err := Open("mysql", "whatever"); err == nil {
		t.Error("Expected error for unsupported database type")
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	conn, err := Open(TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if err := CreateSchema(conn); err != nil {
			t.Fatalf("CreateSchema call %d failed: %v", i+1, err)
		}
	}

	for _, table := range []string{"principal", "election", "candidate", "eligibility_link"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s missing: %v", table, err)
		}
	}
}

func TestSchema_Constraints(t *testing.T) {
	conn, err := Open(TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()
	if err := CreateSchema(conn); err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}

	if _, err := conn.Exec(`INSERT INTO principal (id, identity, wallet_address, is_admin) VALUES ('a', 'admin', '0xa', TRUE)`); err != nil {
		t.Fatalf("Failed to insert principal: %v", err)
	}

	tests := []struct {
		name  string
		query string
	}{
		{"empty contract address", `INSERT INTO election (id, title, admin_id, start_time, end_time, contract_address, created_at)
			VALUES ('e1', 't', 'a', '2025-01-01 00:00:00', '2025-01-02 00:00:00', '', '2025-01-01 00:00:00')`},
		{"start after end", `INSERT INTO election (id, title, admin_id, start_time, end_time, contract_address, created_at)
			VALUES ('e2', 't', 'a', '2025-01-02 00:00:00', '2025-01-01 00:00:00', '0x1', '2025-01-01 00:00:00')`},
		{"unknown admin", `INSERT INTO election (id, title, admin_id, start_time, end_time, contract_address, created_at)
			VALUES ('e3', 't', 'nobody', '2025-01-01 00:00:00', '2025-01-02 00:00:00', '0x2', '2025-01-01 00:00:00')`},
		{"candidate for unknown election", `INSERT INTO candidate (id, election_id, name, position) VALUES ('c1', 'missing', 'A', 0)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := conn.Exec(tt.query); err == nil {
				t.Errorf("Expected constraint violation")
			}
		})
	}
}
