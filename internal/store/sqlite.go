package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amishk599/jobsync/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteBackend keeps the store in a SQLite database: one row per record with
// the record JSON as payload, plus a small key/value metadata table.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens (or creates) a SQLite database at dbPath and ensures
// the tables exist.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS store_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id      TEXT PRIMARY KEY,
			payload TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, &model.CorruptStoreError{Path: dbPath, Err: fmt.Errorf("creating tables: %w", err)}
		}
	}

	return &SQLiteBackend{db: db, path: dbPath}, nil
}

func (b *SQLiteBackend) Location() string { return b.path }

// Read returns (nil, nil) until the first Write.
func (b *SQLiteBackend) Read(ctx context.Context) (*Snapshot, error) {
	meta := map[string]string{}
	rows, err := b.db.QueryContext(ctx, "SELECT key, value FROM store_meta")
	if err != nil {
		return nil, fmt.Errorf("reading store metadata: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning store metadata: %w", err)
		}
		meta[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading store metadata: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil
	}

	snap := &Snapshot{Jobs: make(map[string]model.JobRecord)}
	if err := decodeMeta(meta, &snap.Metadata); err != nil {
		return nil, &model.CorruptStoreError{Path: b.path, Err: err}
	}

	jobRows, err := b.db.QueryContext(ctx, "SELECT id, payload FROM jobs")
	if err != nil {
		return nil, fmt.Errorf("reading jobs: %w", err)
	}
	defer jobRows.Close()
	for jobRows.Next() {
		var id, payload string
		if err := jobRows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		var rec model.JobRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, &model.CorruptStoreError{Path: b.path, Err: fmt.Errorf("job %s: %w", id, err)}
		}
		if rec.ID != id {
			return nil, &model.CorruptStoreError{Path: b.path, Err: fmt.Errorf("row %q carries id %q", id, rec.ID)}
		}
		snap.Jobs[id] = rec
	}
	if err := jobRows.Err(); err != nil {
		return nil, fmt.Errorf("reading jobs: %w", err)
	}
	return snap, nil
}

func decodeMeta(meta map[string]string, out *Metadata) error {
	var err error
	if out.Created, err = time.Parse(time.RFC3339Nano, meta["created"]); err != nil {
		return fmt.Errorf("created: %w", err)
	}
	if out.LastUpdated, err = time.Parse(time.RFC3339Nano, meta["last_updated"]); err != nil {
		return fmt.Errorf("last_updated: %w", err)
	}
	if _, err := fmt.Sscanf(meta["total_jobs"], "%d", &out.TotalJobs); err != nil {
		return fmt.Errorf("total_jobs: %w", err)
	}
	if loc, ok := meta["area_location"]; ok {
		area := &Area{Location: loc}
		if _, err := fmt.Sscanf(meta["area_radius_km"], "%d", &area.RadiusKM); err != nil {
			return fmt.Errorf("area_radius_km: %w", err)
		}
		out.Area = area
	}
	if v, ok := meta["searches"]; ok {
		if err := json.Unmarshal([]byte(v), &out.Searches); err != nil {
			return fmt.Errorf("searches: %w", err)
		}
	}
	return nil
}

// Write replaces all rows in one transaction, so a reader sees either the old
// or the new snapshot.
func (b *SQLiteBackend) Write(ctx context.Context, snap *Snapshot) (err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.StoreWriteError{Path: b.path, Err: err}
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM jobs"); err != nil {
		return &model.StoreWriteError{Path: b.path, Err: fmt.Errorf("clearing jobs: %w", err)}
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO jobs (id, payload) VALUES (?, ?)")
	if err != nil {
		return &model.StoreWriteError{Path: b.path, Err: err}
	}
	defer stmt.Close()

	for id, rec := range snap.Jobs {
		payload, mErr := json.Marshal(rec)
		if mErr != nil {
			err = &model.StoreWriteError{Path: b.path, Err: fmt.Errorf("encoding job %s: %w", id, mErr)}
			return err
		}
		if _, err = stmt.ExecContext(ctx, id, string(payload)); err != nil {
			return &model.StoreWriteError{Path: b.path, Err: fmt.Errorf("inserting job %s: %w", id, err)}
		}
	}

	meta := map[string]string{
		"created":      snap.Metadata.Created.Format(time.RFC3339Nano),
		"last_updated": snap.Metadata.LastUpdated.Format(time.RFC3339Nano),
		"total_jobs":   fmt.Sprintf("%d", snap.Metadata.TotalJobs),
	}
	if a := snap.Metadata.Area; a != nil {
		meta["area_location"] = a.Location
		meta["area_radius_km"] = fmt.Sprintf("%d", a.RadiusKM)
	}
	if len(snap.Metadata.Searches) > 0 {
		searches, mErr := json.Marshal(snap.Metadata.Searches)
		if mErr != nil {
			err = &model.StoreWriteError{Path: b.path, Err: fmt.Errorf("encoding searches: %w", mErr)}
			return err
		}
		meta["searches"] = string(searches)
	}
	for k, v := range meta {
		if _, err = tx.ExecContext(ctx, "INSERT OR REPLACE INTO store_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return &model.StoreWriteError{Path: b.path, Err: fmt.Errorf("writing metadata: %w", err)}
		}
	}

	if err = tx.Commit(); err != nil {
		return &model.StoreWriteError{Path: b.path, Err: fmt.Errorf("committing: %w", err)}
	}
	return nil
}

// Close closes the underlying database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
