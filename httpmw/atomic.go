package httpmw

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/syssam/veloxdb/dialect"
)

// DefaultDriverName is the name under which the primary driver's
// transaction is attached to the request context.
const DefaultDriverName = "default"

// defaultSafeMethods are the HTTP methods that bypass transaction wrapping.
// Per RFC 7231 these must not modify server state.
var defaultSafeMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace,
}

type txKey struct{}

// txState holds the open transactions for one request.
type txState struct {
	mu       sync.Mutex
	txs      map[string]dialect.Tx
	order    []string // begin order, for deterministic commit/rollback
	rollback bool
}

type options struct {
	drivers     map[string]dialect.Driver
	safe        map[string]struct{}
	log         *slog.Logger
	commitError func(r *http.Request, err error)
}

// Option configures the Atomic middleware.
type Option func(*options)

// WithDriver attaches an additional named driver. Each mutating request
// opens one transaction per attached driver.
func WithDriver(name string, drv dialect.Driver) Option {
	return func(o *options) { o.drivers[name] = drv }
}

// WithSafeMethods replaces the set of HTTP methods that bypass
// transaction wrapping.
func WithSafeMethods(methods ...string) Option {
	return func(o *options) {
		o.safe = make(map[string]struct{}, len(methods))
		for _, m := range methods {
			o.safe[m] = struct{}{}
		}
	}
}

// WithLogger replaces the logger used for begin/commit/rollback failures.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// OnCommitError registers a callback invoked when committing a request's
// transactions fails. At that point the handler has already written its
// response, so the client may have seen a success status for a write that
// was lost; the callback is the place to record or alert on that. Without
// it, commit failures are only logged.
func OnCommitError(f func(r *http.Request, err error)) Option {
	return func(o *options) { o.commitError = f }
}

// Atomic returns middleware that wraps mutating requests in database
// transactions. Safe methods (GET, HEAD, OPTIONS, TRACE by default) pass
// through untouched, avoiding the overhead of empty transactions.
//
// For every other request, one transaction is started per attached driver
// and made available to handlers via TxFromRequest. The transactions commit
// when the handler returns normally and roll back when it panics (the panic
// is re-raised) or when SetRollback was called.
//
// The commit runs after the handler has written its response, so a commit
// failure cannot change the status the client received; it is logged, and
// OnCommitError exposes it to callers.
//
// The returned middleware is chi-compatible:
//
//	r := chi.NewRouter()
//	r.Use(httpmw.Atomic(drv))
func Atomic(drv dialect.Driver, opts ...Option) func(http.Handler) http.Handler {
	o := &options{
		drivers: map[string]dialect.Driver{DefaultDriverName: drv},
		log:     slog.Default(),
	}
	o.safe = make(map[string]struct{}, len(defaultSafeMethods))
	for _, m := range defaultSafeMethods {
		o.safe[m] = struct{}{}
	}
	for _, opt := range opts {
		opt(o)
	}
	names := make([]string, 0, len(o.drivers))
	for name := range o.drivers {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := o.safe[r.Method]; ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			state := &txState{txs: make(map[string]dialect.Tx, len(names))}
			for _, name := range names {
				tx, err := o.drivers[name].Tx(ctx)
				if err != nil {
					o.log.Error("httpmw: begin transaction failed",
						"driver", name, "method", r.Method, "path", r.URL.Path, "err", err)
					state.rollbackAll(o.log)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				state.txs[name] = tx
				state.order = append(state.order, name)
			}
			r = r.WithContext(context.WithValue(ctx, txKey{}, state))

			committed := false
			defer func() {
				// Reached only on panic: roll everything back and
				// let the panic continue to the recovery middleware.
				if !committed {
					state.rollbackAll(o.log)
				}
			}()
			next.ServeHTTP(w, r)

			state.mu.Lock()
			doRollback := state.rollback
			state.mu.Unlock()
			if doRollback {
				state.rollbackAll(o.log)
			} else if err := state.commitAll(); err != nil {
				o.log.Error("httpmw: commit failed",
					"method", r.Method, "path", r.URL.Path, "err", err)
				if o.commitError != nil {
					o.commitError(r, err)
				}
			}
			committed = true
		})
	}
}

// commitAll commits every open transaction in reverse begin order.
func (s *txState) commitAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for i := len(s.order) - 1; i >= 0; i-- {
		name := s.order[i]
		if tx, ok := s.txs[name]; ok {
			if err := tx.Commit(); err != nil {
				errs = append(errs, err)
			}
			delete(s.txs, name)
		}
	}
	return errors.Join(errs...)
}

// rollbackAll rolls back every open transaction in reverse begin order.
func (s *txState) rollbackAll(log *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		name := s.order[i]
		if tx, ok := s.txs[name]; ok {
			if err := tx.Rollback(); err != nil {
				log.Error("httpmw: rollback failed", "driver", name, "err", err)
			}
			delete(s.txs, name)
		}
	}
}

// TxFromRequest returns the request's open transaction for the primary
// driver, or nil when the request was not wrapped (safe method, or the
// middleware is not installed).
func TxFromRequest(r *http.Request) dialect.Tx {
	return NamedTxFromRequest(r, DefaultDriverName)
}

// NamedTxFromRequest returns the request's open transaction for the named
// driver, or nil.
func NamedTxFromRequest(r *http.Request, name string) dialect.Tx {
	state, ok := r.Context().Value(txKey{}).(*txState)
	if !ok {
		return nil
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.txs[name]
}

// SetRollback marks the request's transactions for rollback instead of
// commit. Intended for error handlers that turn an error into an HTTP
// response without panicking.
func SetRollback(r *http.Request) {
	state, ok := r.Context().Value(txKey{}).(*txState)
	if !ok {
		return
	}
	state.mu.Lock()
	state.rollback = true
	state.mu.Unlock()
}
