package httpmw_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxdb/dialect"
	"github.com/syssam/veloxdb/dialect/sql"
	"github.com/syssam/veloxdb/httpmw"
)

func newMockDriver(t *testing.T) (*sql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sql.OpenDB(dialect.Postgres, db), mock
}

func TestAtomicSafeMethodBypass(t *testing.T) {
	drv, mock := newMockDriver(t)
	// No Begin expected: a GET must not open a transaction.
	r := chi.NewRouter()
	r.Use(httpmw.Atomic(drv))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, httpmw.TxFromRequest(r))
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicCommit(t *testing.T) {
	drv, mock := newMockDriver(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	r := chi.NewRouter()
	r.Use(httpmw.Atomic(drv))
	r.Post("/orders", func(w http.ResponseWriter, r *http.Request) {
		tx := httpmw.TxFromRequest(r)
		require.NotNil(t, tx)
		err := tx.Exec(r.Context(), "INSERT INTO orders DEFAULT VALUES", []any{}, nil)
		require.NoError(t, err)
		w.WriteHeader(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicSetRollback(t *testing.T) {
	drv, mock := newMockDriver(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	r := chi.NewRouter()
	r.Use(httpmw.Atomic(drv))
	r.Delete("/orders/1", func(w http.ResponseWriter, r *http.Request) {
		httpmw.SetRollback(r)
		w.WriteHeader(http.StatusConflict)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/orders/1", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicPanicRollsBack(t *testing.T) {
	drv, mock := newMockDriver(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	handler := httpmw.Atomic(drv)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.PanicsWithValue(t, "boom", func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicMultipleDrivers(t *testing.T) {
	primary, pmock := newMockDriver(t)
	analytics, amock := newMockDriver(t)
	pmock.ExpectBegin()
	amock.ExpectBegin()
	pmock.ExpectCommit()
	amock.ExpectCommit()

	r := chi.NewRouter()
	r.Use(httpmw.Atomic(primary, httpmw.WithDriver("analytics", analytics)))
	r.Put("/", func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, httpmw.TxFromRequest(r))
		require.NotNil(t, httpmw.NamedTxFromRequest(r, "analytics"))
		assert.Nil(t, httpmw.NamedTxFromRequest(r, "nope"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, pmock.ExpectationsWereMet())
	require.NoError(t, amock.ExpectationsWereMet())
}

func TestAtomicBeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin().WillReturnError(context.DeadlineExceeded)
	drv := sql.OpenDB(dialect.Postgres, db)

	handler := httpmw.Atomic(drv)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run when begin fails")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicCommitFailure(t *testing.T) {
	drv, mock := newMockDriver(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(assert.AnError)

	var commitErr error
	handler := httpmw.Atomic(drv, httpmw.OnCommitError(func(r *http.Request, err error) {
		assert.Equal(t, "/orders", r.URL.Path)
		commitErr = err
	}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))
	// The handler's status already went out; the hook is the only signal.
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.ErrorIs(t, commitErr, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicCustomSafeMethods(t *testing.T) {
	drv, mock := newMockDriver(t)
	// OPTIONS is mutating under the custom set.
	mock.ExpectBegin()
	mock.ExpectCommit()

	handler := httpmw.Atomic(drv, httpmw.WithSafeMethods(http.MethodGet, http.MethodHead))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NotNil(t, httpmw.TxFromRequest(r))
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
