// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

// schema is the fixed DDL for the secrets table.
const schema = `
CREATE TABLE IF NOT EXISTS secrets (
	key_hash TEXT PRIMARY KEY,
	key_enc  BLOB NOT NULL,
	iv       BLOB NOT NULL,
	cipher   BLOB NOT NULL,
	created  INTEGER NOT NULL,
	updated  INTEGER NOT NULL
);
`

// pragmas configure WAL journaling, a 5s busy timeout, and foreign keys.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// Row is one decoded secrets row.
type Row struct {
	KeyHash string
	KeyEnc  []byte
	IV      []byte
	Cipher  []byte
	Created int64
	Updated int64
}

// RowStore wraps the embedded relational database backing one vault
// directory: schema, upsert/find/delete, WAL checkpoint, and the file
// path the integrity sealer hashes.
type RowStore struct {
	db   *sql.DB
	path string
}

// OpenRowStore opens (creating if absent) the sqlite database at path and
// applies the store's fixed schema and pragmas.
func OpenRowStore(path string) (*RowStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &InitializationError{Reason: "opening row store", Cause: err}
	}

	// SQLite only supports one writer, and callers are already serialized
	// by the engine's own lock, so a single connection is both sufficient
	// and avoids cross-connection WAL visibility surprises.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, &InitializationError{Reason: "applying pragma " + p, Cause: err}
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &InitializationError{Reason: "applying schema", Cause: err}
	}

	return &RowStore{db: db, path: path}, nil
}

// Upsert inserts or updates the row for keyHash. On conflict, the
// encrypted payload and updated timestamp change but created is
// preserved.
func (s *RowStore) Upsert(keyHash string, keyEnc, iv, cipher []byte) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO secrets (key_hash, key_enc, iv, cipher, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key_hash) DO UPDATE SET
			key_enc = excluded.key_enc,
			iv      = excluded.iv,
			cipher  = excluded.cipher,
			updated = excluded.updated
	`, keyHash, keyEnc, iv, cipher, now, now)
	if err != nil {
		return fmt.Errorf("vault: upserting row: %w", err)
	}
	return nil
}

// FindByHash returns the row for keyHash, or (nil, nil) if absent.
func (s *RowStore) FindByHash(keyHash string) (*Row, error) {
	row := s.db.QueryRow(`SELECT key_hash, key_enc, iv, cipher, created, updated FROM secrets WHERE key_hash = ?`, keyHash)
	var r Row
	if err := row.Scan(&r.KeyHash, &r.KeyEnc, &r.IV, &r.Cipher, &r.Created, &r.Updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("vault: finding row: %w", err)
	}
	return &r, nil
}

// FindAll returns every row, used once on open to build the name index.
func (s *RowStore) FindAll() ([]Row, error) {
	rows, err := s.db.Query(`SELECT key_hash, key_enc, iv, cipher, created, updated FROM secrets`)
	if err != nil {
		return nil, fmt.Errorf("vault: listing rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.KeyHash, &r.KeyEnc, &r.IV, &r.Cipher, &r.Created, &r.Updated); err != nil {
			return nil, fmt.Errorf("vault: scanning row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vault: iterating rows: %w", err)
	}
	return out, nil
}

// DeleteByHash removes the row for keyHash, reporting whether a row was
// actually removed.
func (s *RowStore) DeleteByHash(keyHash string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM secrets WHERE key_hash = ?`, keyHash)
	if err != nil {
		return false, fmt.Errorf("vault: deleting row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("vault: reading rows affected: %w", err)
	}
	return n > 0, nil
}

// Checkpoint forces a TRUNCATE-style WAL checkpoint: all committed data
// lands in the main database file and the WAL is emptied.
func (s *RowStore) Checkpoint() error {
	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// FilePath returns the absolute path to the main database file.
func (s *RowStore) FilePath() string { return s.path }

// Close closes the underlying database handle.
func (s *RowStore) Close() error {
	return s.db.Close()
}
