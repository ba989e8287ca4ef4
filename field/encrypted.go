package field

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/mail"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/veloxdb/fieldcrypt"
)

// dateLayout is the stable encoding for date-only values.
const dateLayout = "2006-01-02"

// ErrNoCodec is returned when a codec helper is used without a keyset source.
var ErrNoCodec = errors.New("field: codec has no keyset source")

// Codec builds encrypted column values and scanners bound to a keyset
// source. Values are encoded to a stable textual form, encrypted to a
// Fernet token, and stored in a binary (or text) column. Scanning reverses
// the process, trying every key in the keyset so rotated secrets keep old
// rows readable.
//
// Encrypted columns cannot be primary keys, unique, or indexed, and support
// no lookups except IS NULL: tokens are randomized per write, so equality
// of plaintexts is never observable in the database.
type Codec struct {
	src fieldcrypt.Provider
}

// NewCodec returns a Codec reading keys from src. Pass a *fieldcrypt.Keyset
// directly, or a *fieldcrypt.Source for file-based rotation.
func NewCodec(src fieldcrypt.Provider) *Codec {
	return &Codec{src: src}
}

func (c *Codec) seal(plaintext []byte) (driver.Value, error) {
	if c == nil || c.src == nil {
		return nil, ErrNoCodec
	}
	tok, err := c.src.Keyset().Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

func (c *Codec) open(src any) ([]byte, error) {
	if c == nil || c.src == nil {
		return nil, ErrNoCodec
	}
	var tok []byte
	switch v := src.(type) {
	case []byte:
		tok = v
	case string:
		tok = []byte(v)
	default:
		return nil, fmt.Errorf("field: unsupported ciphertext type %T", src)
	}
	return c.src.Keyset().Decrypt(tok)
}

// String returns a driver.Valuer storing s encrypted.
func (c *Codec) String(s string) driver.Valuer {
	return valueFunc(func() (driver.Value, error) { return c.seal([]byte(s)) })
}

// ScanString returns a sql.Scanner decrypting into dest.
// A NULL column value resets dest to the empty string; wrap the scanner in
// a dialect/sql.NullScanner to distinguish NULL from "".
func (c *Codec) ScanString(dest *string) sql.Scanner {
	return scanFunc(func(src any) error {
		if src == nil {
			*dest = ""
			return nil
		}
		msg, err := c.open(src)
		if err != nil {
			return err
		}
		*dest = string(msg)
		return nil
	})
}

// Email is like String but rejects values that are not valid addresses
// before encrypting, mirroring a validated email column.
func (c *Codec) Email(s string) driver.Valuer {
	return valueFunc(func() (driver.Value, error) {
		if _, err := mail.ParseAddress(s); err != nil {
			return nil, &ValidationError{Name: "email", Err: err}
		}
		return c.seal([]byte(s))
	})
}

// Int returns a driver.Valuer storing i encrypted in decimal encoding.
func (c *Codec) Int(i int64) driver.Valuer {
	return valueFunc(func() (driver.Value, error) {
		return c.seal(strconv.AppendInt(nil, i, 10))
	})
}

// ScanInt returns a sql.Scanner decrypting into dest.
func (c *Codec) ScanInt(dest *int64) sql.Scanner {
	return scanFunc(func(src any) error {
		if src == nil {
			*dest = 0
			return nil
		}
		msg, err := c.open(src)
		if err != nil {
			return err
		}
		i, err := strconv.ParseInt(string(msg), 10, 64)
		if err != nil {
			return fmt.Errorf("field: decode int: %w", err)
		}
		*dest = i
		return nil
	})
}

// Time returns a driver.Valuer storing t encrypted in RFC 3339 encoding
// with nanosecond precision.
func (c *Codec) Time(t time.Time) driver.Valuer {
	return valueFunc(func() (driver.Value, error) {
		return c.seal([]byte(t.Format(time.RFC3339Nano)))
	})
}

// ScanTime returns a sql.Scanner decrypting into dest.
func (c *Codec) ScanTime(dest *time.Time) sql.Scanner {
	return scanFunc(func(src any) error {
		if src == nil {
			*dest = time.Time{}
			return nil
		}
		msg, err := c.open(src)
		if err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, string(msg))
		if err != nil {
			return fmt.Errorf("field: decode time: %w", err)
		}
		*dest = t
		return nil
	})
}

// Date returns a driver.Valuer storing the date part of t encrypted.
func (c *Codec) Date(t time.Time) driver.Valuer {
	return valueFunc(func() (driver.Value, error) {
		return c.seal([]byte(t.Format(dateLayout)))
	})
}

// ScanDate returns a sql.Scanner decrypting into dest. The result is
// midnight UTC of the stored date.
func (c *Codec) ScanDate(dest *time.Time) sql.Scanner {
	return scanFunc(func(src any) error {
		if src == nil {
			*dest = time.Time{}
			return nil
		}
		msg, err := c.open(src)
		if err != nil {
			return err
		}
		t, err := time.Parse(dateLayout, string(msg))
		if err != nil {
			return fmt.Errorf("field: decode date: %w", err)
		}
		*dest = t
		return nil
	})
}

// Bytes returns a driver.Valuer storing b encrypted.
func (c *Codec) Bytes(b []byte) driver.Valuer {
	return valueFunc(func() (driver.Value, error) { return c.seal(b) })
}

// ScanBytes returns a sql.Scanner decrypting into dest.
func (c *Codec) ScanBytes(dest *[]byte) sql.Scanner {
	return scanFunc(func(src any) error {
		if src == nil {
			*dest = nil
			return nil
		}
		msg, err := c.open(src)
		if err != nil {
			return err
		}
		*dest = msg
		return nil
	})
}

// UUID returns a driver.Valuer storing u encrypted in canonical string form.
func (c *Codec) UUID(u uuid.UUID) driver.Valuer {
	return valueFunc(func() (driver.Value, error) { return c.seal([]byte(u.String())) })
}

// ScanUUID returns a sql.Scanner decrypting into dest.
func (c *Codec) ScanUUID(dest *uuid.UUID) sql.Scanner {
	return scanFunc(func(src any) error {
		if src == nil {
			*dest = uuid.Nil
			return nil
		}
		msg, err := c.open(src)
		if err != nil {
			return err
		}
		u, err := uuid.ParseBytes(msg)
		if err != nil {
			return fmt.Errorf("field: decode uuid: %w", err)
		}
		*dest = u
		return nil
	})
}

// Object returns a driver.Valuer storing v encrypted in msgpack encoding.
// It handles arbitrary Go values (structs, maps, slices) where the typed
// helpers above do not fit.
func (c *Codec) Object(v any) driver.Valuer {
	return valueFunc(func() (driver.Value, error) {
		b, err := msgpack.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field: encode object: %w", err)
		}
		return c.seal(b)
	})
}

// ScanObject returns a sql.Scanner decrypting the msgpack encoding into dest.
// A NULL column value resets dest to its zero value.
func (c *Codec) ScanObject(dest any) sql.Scanner {
	return scanFunc(func(src any) error {
		if src == nil {
			if v := reflect.ValueOf(dest); v.Kind() == reflect.Pointer && !v.IsNil() {
				v.Elem().SetZero()
			}
			return nil
		}
		msg, err := c.open(src)
		if err != nil {
			return err
		}
		if err := msgpack.Unmarshal(msg, dest); err != nil {
			return fmt.Errorf("field: decode object: %w", err)
		}
		return nil
	})
}

// valueFunc adapts a function to driver.Valuer.
type valueFunc func() (driver.Value, error)

func (f valueFunc) Value() (driver.Value, error) { return f() }

// scanFunc adapts a function to sql.Scanner.
type scanFunc func(src any) error

func (f scanFunc) Scan(src any) error { return f(src) }
