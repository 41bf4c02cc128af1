package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	loadSnapshotQuery = `SELECT document FROM store_snapshot WHERE id = 1`

	saveSnapshotPostgres = `INSERT INTO store_snapshot (id, document, updated_at) VALUES (1, $1, now())
ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`

	saveSnapshotSQLite = `INSERT INTO store_snapshot (id, document, updated_at) VALUES (1, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
ON CONFLICT (id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`
)

// SQLPersister keeps the document as the single row of store_snapshot.
type SQLPersister struct {
	db     *sqlx.DB
	upsert string
}

// NewSQLPersister returns a persister for db. driver selects the upsert dialect: "postgres" or "sqlite".
func NewSQLPersister(db *sqlx.DB, driver string) (*SQLPersister, error) {
	p := &SQLPersister{db: db}
	switch driver {
	case "postgres":
		p.upsert = saveSnapshotPostgres
	case "sqlite":
		p.upsert = saveSnapshotSQLite
	default:
		return nil, fmt.Errorf("store: unsupported sql driver %q", driver)
	}
	return p, nil
}

// Load reads the stored document or returns an empty one when the row is absent.
func (p *SQLPersister) Load(ctx context.Context) (*Snapshot, error) {
	var doc []byte
	err := p.db.GetContext(ctx, &doc, loadSnapshotQuery)
	if errors.Is(err, sql.ErrNoRows) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	snap := NewSnapshot()
	if err := json.Unmarshal(doc, snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Items == nil {
		snap.Items = map[string]*Item{}
	}
	if snap.Users == nil {
		snap.Users = map[string]*User{}
	}
	return snap, nil
}

// Save replaces the stored document inside a transaction.
func (p *SQLPersister) Save(ctx context.Context, snap *Snapshot) (err error) {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, p.upsert, string(doc)); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
