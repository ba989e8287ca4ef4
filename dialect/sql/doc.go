// Package sql implements the dialect.Driver interface on top of database/sql.
//
// It is the execution substrate for the veloxdb extensions: the transaction
// middleware and the view syncer run their statements through a *sql.Driver,
// and the encrypted field codecs plug into its scan/value machinery.
//
// # Opening a Driver
//
//	import (
//	    "github.com/syssam/veloxdb/dialect"
//	    "github.com/syssam/veloxdb/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// An existing *database/sql.DB can be wrapped instead:
//
//	drv := sql.OpenDB(dialect.Postgres, db)
//
// # Executing Statements
//
// Exec scans its result into a *sql.Result (or nil to discard):
//
//	var res sql.Result
//	err := drv.Exec(ctx, "UPDATE users SET name = $1", []any{"a8m"}, &res)
//
// Query scans into a *sql.Rows:
//
//	var rows sql.Rows
//	err := drv.Query(ctx, "SELECT id FROM users", []any{}, &rows)
//	defer rows.Close()
//
// # Transactions
//
//	tx, err := drv.Tx(ctx)
//	if err != nil {
//	    return err
//	}
//	if err := tx.Exec(ctx, query, args, nil); err != nil {
//	    return errors.Join(err, tx.Rollback())
//	}
//	return tx.Commit()
package sql
