// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the election store and creates its schema.

# Drivers

Open accepts a database type and a connection string:

	conn, err := db.Open(db.TypePostgres, "postgres://...")
	conn, err := db.Open(db.TypeSQLite, "file:pitwall.db")

Postgres uses github.com/lib/pq; SQLite uses the pure-Go modernc.org/sqlite
driver and is capped at one open connection.

# Schema Creation

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - principal: identity, wallet_address (both unique), is_admin
  - election: metadata and contract_address (non-empty, unique)
  - candidate: name and position, unique per election
  - eligibility_link: (election_id, principal_id) primary key

# Relationships

	principal 1──* election (admin_id)
	election 1──* candidate
	election *──* principal (via eligibility_link)
*/
package db
