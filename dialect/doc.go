// Package dialect provides the database driver abstraction used by veloxdb.
//
// It defines the interfaces and types for database-specific operations,
// allowing the veloxdb extensions (encrypted fields, transaction middleware,
// view management) to work against PostgreSQL, MySQL, and SQLite.
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// The Driver interface wraps all database operations:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface extends ExecQuerier with Commit and Rollback.
//
// # Usage
//
// Opening a database connection:
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
// Wrap any driver with Debug to log every statement:
//
//	drv = dialect.Debug(drv)
//
// # Sub-packages
//
//   - dialect/sql: driver implementation over database/sql
package dialect
