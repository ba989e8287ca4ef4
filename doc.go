// Package veloxdb provides database extensions for applications built on
// the velox dialect drivers: transparent field-level encryption with key
// rotation, request-scoped transaction middleware, and lifecycle management
// for PostgreSQL views and materialized views.
//
// The root package ties the pieces together through Config, which loads a
// YAML file describing the database connection, the encryption secrets,
// and the declared views:
//
//	cfg, err := veloxdb.LoadConfig("veloxdb.yaml")
//	drv, err := cfg.Open()
//	ks, err := cfg.Keyset()
//	reg, err := cfg.Registry()
//
// The subpackages are usable independently:
//
//   - fieldcrypt: key derivation and multi-key Fernet encryption.
//   - field: encrypted and normalizing column codecs.
//   - httpmw: per-request transaction middleware.
//   - view: view registry, sync planner, and refresh helpers.
//   - dialect, dialect/sql: the driver substrate the above build on.
package veloxdb
