package view

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxdb/dialect"
	"github.com/syssam/veloxdb/dialect/sql"
)

func newMockSyncer(t *testing.T, reg *Registry, opts ...SyncerOption) (*Syncer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSyncer(sql.OpenDB(dialect.Postgres, db), reg, opts...), mock
}

func expectCatalog(mock sqlmock.Sqlmock, views, matviews *sqlmock.Rows) {
	if views == nil {
		views = sqlmock.NewRows([]string{"table_schema", "table_name", "view_definition"})
	}
	if matviews == nil {
		matviews = sqlmock.NewRows([]string{"schemaname", "matviewname", "definition"})
	}
	mock.ExpectQuery("information_schema.views").WillReturnRows(views)
	mock.ExpectQuery("pg_matviews").WillReturnRows(matviews)
}

func TestSyncCreatesInDependencyOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "top", SQL: "SELECT a FROM base", Dependencies: []string{"base"}}))
	require.NoError(t, reg.Register(Definition{Name: "base", SQL: "SELECT a FROM t"}))

	var (
		statuses []Status
		all      bool
	)
	s, mock := newMockSyncer(t, reg,
		OnViewSynced(func(_ *Definition, st Status) { statuses = append(statuses, st) }),
		OnAllSynced(func() { all = true }),
	)
	mock.ExpectBegin()
	expectCatalog(mock, nil, nil)
	mock.ExpectExec("CREATE VIEW base AS SELECT a FROM t;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE VIEW top AS SELECT a FROM base;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	plan, err := s.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, []Status{StatusCreated, StatusCreated}, statuses)
	assert.True(t, all)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncUnchangedViewSkipped(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "v", SQL: "SELECT a FROM t"}))

	s, mock := newMockSyncer(t, reg)
	mock.ExpectBegin()
	expectCatalog(mock,
		sqlmock.NewRows([]string{"table_schema", "table_name", "view_definition"}).
			AddRow("public", "v", " SELECT a\n   FROM t;"),
		nil)
	mock.ExpectCommit()

	plan, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusExists, plan.Steps[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncForceRequired(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "v", SQL: "SELECT a, b FROM t"}))

	s, mock := newMockSyncer(t, reg)
	mock.ExpectBegin()
	expectCatalog(mock,
		sqlmock.NewRows([]string{"table_schema", "table_name", "view_definition"}).
			AddRow("public", "v", "SELECT a FROM t"),
		nil)
	mock.ExpectCommit()

	plan, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusForceRequired, plan.Steps[0].Status)
	assert.Equal(t, []string{"v"}, plan.Pending())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncForcedRecreate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{
		Name:            "stats",
		SQL:             "SELECT id FROM t",
		Materialized:    true,
		ConcurrentIndex: "id",
	}))

	s, mock := newMockSyncer(t, reg)
	mock.ExpectBegin()
	expectCatalog(mock, nil,
		sqlmock.NewRows([]string{"schemaname", "matviewname", "definition"}).
			AddRow("public", "stats", "SELECT old FROM t"))
	mock.ExpectExec("DROP MATERIALIZED VIEW IF EXISTS stats CASCADE;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE MATERIALIZED VIEW stats AS SELECT id FROM t;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE UNIQUE INDEX stats_id_index ON stats").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	plan, err := s.Sync(context.Background(), WithForce())
	require.NoError(t, err)
	assert.Equal(t, StatusForced, plan.Steps[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRollsBackOnError(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "v", SQL: "SELECT a FROM t"}))

	s, mock := newMockSyncer(t, reg)
	mock.ExpectBegin()
	expectCatalog(mock, nil, nil)
	mock.ExpectExec("CREATE VIEW v AS SELECT a FROM t;").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := s.Sync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `syncing "v"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClear(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "base", SQL: "SELECT a FROM t"}))
	require.NoError(t, reg.Register(Definition{Name: "top", SQL: "SELECT a FROM base", Dependencies: []string{"base"}}))
	require.NoError(t, reg.Register(Definition{Name: "stats", SQL: "SELECT 1", Materialized: true}))

	s, mock := newMockSyncer(t, reg)
	mock.ExpectBegin()
	// Reverse dependency order: dependents drop before their dependencies.
	mock.ExpectExec("DROP MATERIALIZED VIEW IF EXISTS stats CASCADE;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP VIEW IF EXISTS top CASCADE;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP VIEW IF EXISTS base CASCADE;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.Clear(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "plain", SQL: "SELECT 1"}))
	require.NoError(t, reg.Register(Definition{Name: "stats", SQL: "SELECT 1", Materialized: true}))
	require.NoError(t, reg.Register(Definition{
		Name: "indexed", SQL: "SELECT 1", Materialized: true, ConcurrentIndex: "id",
	}))

	t.Run("blocking", func(t *testing.T) {
		s, mock := newMockSyncer(t, reg)
		mock.ExpectExec("REFRESH MATERIALIZED VIEW stats").WillReturnResult(sqlmock.NewResult(0, 0))
		require.NoError(t, s.Refresh(context.Background(), "stats", false))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("concurrently", func(t *testing.T) {
		s, mock := newMockSyncer(t, reg)
		mock.ExpectExec("REFRESH MATERIALIZED VIEW CONCURRENTLY indexed").WillReturnResult(sqlmock.NewResult(0, 0))
		require.NoError(t, s.Refresh(context.Background(), "indexed", true))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("concurrently_without_index_falls_back", func(t *testing.T) {
		s, mock := newMockSyncer(t, reg)
		mock.ExpectExec("REFRESH MATERIALIZED VIEW stats").WillReturnResult(sqlmock.NewResult(0, 0))
		require.NoError(t, s.Refresh(context.Background(), "stats", true))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("unknown", func(t *testing.T) {
		s, _ := newMockSyncer(t, reg)
		err := s.Refresh(context.Background(), "nope", false)
		require.ErrorIs(t, err, ErrUnknownView)
	})
	t.Run("not_materialized", func(t *testing.T) {
		s, _ := newMockSyncer(t, reg)
		err := s.Refresh(context.Background(), "plain", false)
		require.ErrorIs(t, err, ErrNotMaterialized)
	})
}

func TestRefreshAll(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "plain", SQL: "SELECT 1"}))
	require.NoError(t, reg.Register(Definition{Name: "a", SQL: "SELECT 1", Materialized: true}))
	require.NoError(t, reg.Register(Definition{Name: "b", SQL: "SELECT 1", Materialized: true}))

	t.Run("sequential", func(t *testing.T) {
		s, mock := newMockSyncer(t, reg)
		mock.ExpectExec("REFRESH MATERIALIZED VIEW a").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("REFRESH MATERIALIZED VIEW b").WillReturnResult(sqlmock.NewResult(0, 0))
		require.NoError(t, s.RefreshAll(context.Background(), false, 1))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("parallel", func(t *testing.T) {
		s, mock := newMockSyncer(t, reg)
		mock.MatchExpectationsInOrder(false)
		mock.ExpectExec("REFRESH MATERIALIZED VIEW a").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("REFRESH MATERIALIZED VIEW b").WillReturnResult(sqlmock.NewResult(0, 0))
		require.NoError(t, s.RefreshAll(context.Background(), false, 4))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDropAffected(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "user_view", SQL: "SELECT id FROM users"}))
	require.NoError(t, reg.Register(Definition{Name: "order_view", SQL: "SELECT id FROM orders"}))

	t.Run("only_referencing_views", func(t *testing.T) {
		s, mock := newMockSyncer(t, reg)
		mock.ExpectBegin()
		mock.ExpectExec("DROP VIEW IF EXISTS user_view CASCADE;").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		dropped, err := s.DropAffected(context.Background(), []string{"users"})
		require.NoError(t, err)
		assert.Equal(t, []string{"user_view"}, dropped)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no_overlap", func(t *testing.T) {
		s, mock := newMockSyncer(t, reg)
		mock.ExpectBegin()
		mock.ExpectCommit()

		dropped, err := s.DropAffected(context.Background(), []string{"payments"})
		require.NoError(t, err)
		assert.Empty(t, dropped)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conservative", func(t *testing.T) {
		s, mock := newMockSyncer(t, reg)
		mock.ExpectBegin()
		mock.ExpectExec("DROP VIEW IF EXISTS order_view CASCADE;").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DROP VIEW IF EXISTS user_view CASCADE;").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		dropped, err := s.DropAffected(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"order_view", "user_view"}, dropped)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
