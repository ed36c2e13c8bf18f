package triples

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS allowed_triples (
		source_type TEXT NOT NULL,
		relationship_type TEXT NOT NULL,
		target_type TEXT NOT NULL,
		PRIMARY KEY (source_type, relationship_type, target_type)
	)`

	selectTriplesSQL = `SELECT source_type, relationship_type, target_type
		FROM allowed_triples
		ORDER BY source_type, relationship_type, target_type`

	insertTripleSQL = `INSERT OR IGNORE INTO allowed_triples
		(source_type, relationship_type, target_type) VALUES (?, ?, ?)`
)

// SQLiteStore keeps the allow-list in the allowed_triples table.
type SQLiteStore struct {
	db    *sql.DB
	owned bool
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, orbit.NewConfigurationError("triples.OpenSQLite",
			fmt.Errorf("%w: sqlite database path is required", orbit.ErrInvalidConfig))
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, orbit.NewStorageError("triples.OpenSQLite", err)
	}
	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLiteStore uses an open database, creating the table if missing.
// Close does not close db.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, orbit.NewStorageError("triples.NewSQLiteStore", fmt.Errorf("create table: %w", err))
	}
	return &SQLiteStore{db: db}, nil
}

// Load selects every row.
func (s *SQLiteStore) Load(ctx context.Context) (graph.TripleSet, error) {
	rows, err := s.db.QueryContext(ctx, selectTriplesSQL)
	if err != nil {
		return graph.TripleSet{}, orbit.NewStorageError("SQLiteStore.Load", err)
	}
	defer rows.Close()

	var triples []graph.Triple
	for rows.Next() {
		var t graph.Triple
		if err := rows.Scan(&t.SourceType, &t.RelationshipType, &t.TargetType); err != nil {
			return graph.TripleSet{}, orbit.NewStorageError("SQLiteStore.Load", err)
		}
		triples = append(triples, t)
	}
	if err := rows.Err(); err != nil {
		return graph.TripleSet{}, orbit.NewStorageError("SQLiteStore.Load", err)
	}
	return versioned(triples), nil
}

// Add inserts triples in one transaction.
func (s *SQLiteStore) Add(ctx context.Context, triples []graph.Triple) error {
	if len(triples) == 0 {
		return nil
	}
	if err := validate("SQLiteStore.Add", triples); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return orbit.NewStorageError("SQLiteStore.Add", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertTripleSQL)
	if err != nil {
		return orbit.NewStorageError("SQLiteStore.Add", err)
	}
	defer stmt.Close()

	for _, t := range triples {
		if _, err := stmt.ExecContext(ctx, t.SourceType, t.RelationshipType, t.TargetType); err != nil {
			return orbit.NewStorageError("SQLiteStore.Add", fmt.Errorf("insert %s: %w", t, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return orbit.NewStorageError("SQLiteStore.Add", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database if the store opened it.
func (s *SQLiteStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
