// Package sqlite implements store.Store on SQLite through database/sql and
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/IvanBrykalov/valuecache/state"
	"github.com/IvanBrykalov/valuecache/store"
)

const upsertSQL = `
	INSERT INTO state_values (state_key, value, touched)
	VALUES (?, ?, (SELECT COALESCE(MAX(touched), 0) + 1 FROM state_values))
	ON CONFLICT(state_key) DO UPDATE SET value = excluded.value, touched = excluded.touched
`

// Store persists state values in a single SQLite table.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

const pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Open connects to the database at path (a file path, a file: URI, or
// ":memory:") and verifies connectivity with a ping.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" || strings.HasPrefix(path, ":memory:?") {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// dsn appends the connection pragmas to path, keeping any query it has.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}
	return path + "?" + pragmas
}

// InitSchema creates the table and index if they don't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS state_values (
			state_key TEXT PRIMARY KEY,
			value REAL NOT NULL,
			touched INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_state_values_touched ON state_values(touched);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key state.Key) (store.Record, error) {
	var value float64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM state_values WHERE state_key = ?`, key.String(),
	).Scan(&value)
	if err == sql.ErrNoRows {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("failed to query state value: %w", err)
	}
	return store.Record{Key: key, Value: value}, nil
}

// Upsert implements store.Store.
func (s *Store) Upsert(ctx context.Context, key state.Key, value float64) error {
	if _, err := s.db.ExecContext(ctx, upsertSQL, key.String(), value); err != nil {
		return fmt.Errorf("failed to upsert state value: %w", err)
	}
	return nil
}

// BulkUpsert implements store.Store inside one transaction. A statement
// failure is recorded against its item and the remaining items still run;
// a failed commit fails every item.
func (s *Store) BulkUpsert(ctx context.Context, records []store.Record) (store.BulkResult, error) {
	res := store.NewBulkResult(records)
	if len(records) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.BulkResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return store.BulkResult{}, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Key.String(), r.Value); err != nil {
			res.Items[i].Err = fmt.Errorf("failed to upsert state value: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.BulkResult{}, fmt.Errorf("failed to commit batch: %w", err)
	}
	return res, nil
}

// LoadRecent implements store.Store. Rows whose key does not decode are
// logged and skipped.
func (s *Store) LoadRecent(ctx context.Context, limit int, skip float64) ([]store.Record, error) {
	query := `
		SELECT state_key, value
		FROM state_values
		WHERE value <> ?
		ORDER BY touched DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent values: %w", err)
	}
	defer rows.Close()

	var recs []store.Record
	for rows.Next() {
		var (
			enc   string
			value float64
		)
		if err := rows.Scan(&enc, &value); err != nil {
			return nil, fmt.Errorf("failed to scan state value: %w", err)
		}
		k, err := state.Parse(enc)
		if err != nil {
			s.log.LogAttrs(ctx, slog.LevelWarn, "skipping undecodable state key",
				slog.String("state_key", enc),
				slog.Any("error", err))
			continue
		}
		recs = append(recs, store.Record{Key: k, Value: value})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state values: %w", err)
	}
	return recs, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ store.Store = (*Store)(nil)
