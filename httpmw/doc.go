// Package httpmw provides HTTP middleware for request-scoped database
// transactions.
//
// Atomic wraps every mutating request (POST, PUT, PATCH, DELETE, ...) in
// one transaction per attached driver: all of the request's writes commit
// together or not at all. Safe methods bypass the wrapper entirely, so
// read-only traffic pays no transaction overhead.
//
//	drv, _ := sql.Open(dialect.Postgres, dsn)
//	r := chi.NewRouter()
//	r.Use(httpmw.Atomic(drv))
//	r.Post("/orders", func(w http.ResponseWriter, r *http.Request) {
//	    tx := httpmw.TxFromRequest(r)
//	    // All writes through tx commit when the handler returns.
//	})
//
// Error handlers that convert an error into a response (instead of
// panicking) call SetRollback to discard the request's writes:
//
//	httpmw.SetRollback(r)
//	w.WriteHeader(http.StatusConflict)
package httpmw
