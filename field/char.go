package field

import (
	"database/sql/driver"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// NullableString is a string column that stores "" as NULL and scans NULL
// back as "". Useful for unique text columns where several rows need an
// "absent" value: multiple NULLs do not violate a unique constraint, while
// multiple empty strings do.
type NullableString string

// Value implements driver.Valuer: the empty string becomes NULL.
func (s NullableString) Value() (driver.Value, error) {
	if s == "" {
		return nil, nil
	}
	return string(s), nil
}

// Scan implements sql.Scanner: NULL becomes the empty string.
func (s *NullableString) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = ""
	case string:
		*s = NullableString(v)
	case []byte:
		*s = NullableString(v)
	default:
		return fmt.Errorf("field: cannot scan %T into NullableString", src)
	}
	return nil
}

// UpperString is a string column normalized to Unicode uppercase on both
// write and read, so values compare case-insensitively without relying on
// database collations.
type UpperString string

// Value implements driver.Valuer.
func (s UpperString) Value() (driver.Value, error) {
	return upper.String(string(s)), nil
}

// Scan implements sql.Scanner.
func (s *UpperString) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = ""
	case string:
		*s = UpperString(upper.String(v))
	case []byte:
		*s = UpperString(upper.String(string(v)))
	default:
		return fmt.Errorf("field: cannot scan %T into UpperString", src)
	}
	return nil
}
