package triples

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLiteStore(context.Background(), db)
	require.NoError(t, err)
	return s
}

func TestSQLiteStore(t *testing.T) {
	s := setupSQLiteStore(t)
	exerciseStore(t, s)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close(), "borrowed db is not closed")
	require.NoError(t, s.Ping(context.Background()))
}

func TestSQLiteStoreOpenRequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "")
	assert.ErrorIs(t, err, orbit.ErrInvalidConfig)
}

func TestSQLiteStoreWithMock(t *testing.T) {
	ctx := context.Background()

	newMock := func(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS allowed_triples").
			WillReturnResult(sqlmock.NewResult(0, 0))
		s, err := NewSQLiteStore(ctx, db)
		require.NoError(t, err)
		return s, mock
	}

	t.Run("add commits one transaction", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectBegin()
		prep := mock.ExpectPrepare("INSERT OR IGNORE INTO allowed_triples")
		prep.ExpectExec().WithArgs("malware", "uses", "attack-pattern").WillReturnResult(sqlmock.NewResult(1, 1))
		prep.ExpectExec().WithArgs("tool", "uses", "attack-pattern").WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		require.NoError(t, s.Add(ctx, []graph.Triple{usesPattern, toolUses}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed insert rolls back", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectBegin()
		prep := mock.ExpectPrepare("INSERT OR IGNORE INTO allowed_triples")
		prep.ExpectExec().WithArgs("malware", "uses", "attack-pattern").WillReturnResult(sqlmock.NewResult(1, 1))
		prep.ExpectExec().WithArgs("tool", "uses", "attack-pattern").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := s.Add(ctx, []graph.Triple{usesPattern, toolUses})
		require.Error(t, err)
		assert.ErrorIs(t, err, orbit.ErrStoreFailed)
		assert.Contains(t, err.Error(), "disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("load scans rows", func(t *testing.T) {
		s, mock := newMock(t)
		rows := sqlmock.NewRows([]string{"source_type", "relationship_type", "target_type"}).
			AddRow("course-of-action", "mitigates", "attack-pattern").
			AddRow("malware", "uses", "attack-pattern")
		mock.ExpectQuery("SELECT source_type, relationship_type, target_type").WillReturnRows(rows)

		set, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []graph.Triple{mitigates, usesPattern}, set.Sorted())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("load query error", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectQuery("SELECT source_type").WillReturnError(errors.New("locked"))

		_, err := s.Load(ctx)
		assert.ErrorIs(t, err, orbit.ErrStoreFailed)
	})

	t.Run("create table error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("read-only"))

		_, err = NewSQLiteStore(ctx, db)
		assert.ErrorIs(t, err, orbit.ErrStoreFailed)
	})
}
