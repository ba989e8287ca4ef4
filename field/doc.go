// Package field provides column codecs for veloxdb: transparently encrypted
// columns, normalized char columns, and validated JSON columns.
//
// # Encrypted Columns
//
// A Codec bound to a fieldcrypt keyset produces driver.Valuer / sql.Scanner
// pairs for the common column types:
//
//	ks, _ := fieldcrypt.New([]string{secret})
//	codec := field.NewCodec(ks)
//
//	// Writing
//	_, err := db.Exec(
//	    "INSERT INTO users (name, ssn) VALUES ($1, $2)",
//	    name, codec.String(ssn),
//	)
//
//	// Reading
//	var ssn string
//	err = db.QueryRow("SELECT ssn FROM users WHERE id = $1", id).
//	    Scan(codec.ScanString(&ssn))
//
// Ciphertexts are randomized Fernet tokens stored in a binary or text
// column. Encrypted columns therefore support no lookups except IS NULL,
// and must not be primary keys, unique, or indexed.
//
// # Char Columns
//
// NullableString folds "" to NULL on write and NULL to "" on read.
// UpperString normalizes to Unicode uppercase in both directions.
//
// # JSON Columns
//
// JSONValue binds a JSON column to a Go type with `validate` tags and
// validates on both read and write, with optional on-demand migration of
// rows written under an older shape (see JSONValue.Coerce).
package field
