package field_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxdb/field"
)

type account struct {
	Email string `json:"email" validate:"required,email"`
	Plan  string `json:"plan" validate:"required,oneof=free pro"`
}

func TestJSONValue(t *testing.T) {
	t.Run("round_trip", func(t *testing.T) {
		v, err := field.JSON(account{Email: "a8m@example.com", Plan: "pro"}).Value()
		require.NoError(t, err)

		var got field.JSONValue[account]
		require.NoError(t, got.Scan(v))
		assert.Equal(t, "a8m@example.com", got.V.Email)
		assert.Equal(t, "pro", got.V.Plan)
	})

	t.Run("invalid_value_rejected", func(t *testing.T) {
		_, err := field.JSON(account{Email: "nope", Plan: "pro"}).Value()
		require.Error(t, err)
		assert.True(t, field.IsValidationError(err))
	})

	t.Run("invalid_row_rejected", func(t *testing.T) {
		var got field.JSONValue[account]
		err := got.Scan([]byte(`{"email": "a8m@example.com", "plan": "enterprise"}`))
		require.Error(t, err)
		assert.True(t, field.IsValidationError(err))
	})

	t.Run("malformed_json", func(t *testing.T) {
		var got field.JSONValue[account]
		err := got.Scan([]byte(`{`))
		require.Error(t, err)
		assert.True(t, field.IsValidationError(err))
	})

	t.Run("null_scans_zero", func(t *testing.T) {
		got := field.JSONValue[account]{V: account{Email: "x@example.com", Plan: "free"}}
		require.NoError(t, got.Scan(nil))
		assert.Equal(t, account{}, got.V)
	})

	t.Run("non_struct_payloads", func(t *testing.T) {
		v, err := field.JSON([]string{"a", "b"}).Value()
		require.NoError(t, err)
		var got field.JSONValue[[]string]
		require.NoError(t, got.Scan(v))
		assert.Equal(t, []string{"a", "b"}, got.V)
	})
}

// TestJSONValueCoerce exercises on-demand migration of rows written under
// an older shape of the bound type.
func TestJSONValueCoerce(t *testing.T) {
	// Older rows used "tier" instead of "plan".
	legacy := []byte(`{"email": "a8m@example.com", "tier": "pro"}`)

	migrate := func(raw []byte) ([]byte, error) {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		if tier, ok := m["tier"]; ok {
			m["plan"] = tier
			delete(m, "tier")
		}
		return json.Marshal(m)
	}

	t.Run("coerced", func(t *testing.T) {
		got := field.JSONValue[account]{Coerce: migrate}
		require.NoError(t, got.Scan(legacy))
		assert.Equal(t, "pro", got.V.Plan)
	})

	t.Run("coerce_fails_without_force", func(t *testing.T) {
		got := field.JSONValue[account]{Coerce: migrate}
		err := got.Scan([]byte(`{"email": "a8m@example.com", "tier": "enterprise"}`))
		require.Error(t, err)
	})

	t.Run("force_load_keeps_invalid", func(t *testing.T) {
		got := field.JSONValue[account]{ForceLoad: true}
		require.NoError(t, got.Scan([]byte(`{"email": "a8m@example.com", "plan": "enterprise"}`)))
		assert.Equal(t, "enterprise", got.V.Plan)
	})
}
