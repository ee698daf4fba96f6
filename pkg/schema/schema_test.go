package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_EnumField(t *testing.T) {
	s := Schema{
		"parameter": StringEnum("Address", "Phone", "Email"),
		"value":     String(),
	}

	err := s.Validate(map[string]any{"parameter": "Email", "value": "a@b.com"})
	assert.NoError(t, err)

	err = s.Validate(map[string]any{"parameter": "CustomerId", "value": "99"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "parameter", verr.Key)
}

func TestValidate_MissingRequired(t *testing.T) {
	s := Schema{"artist": String()}

	err := s.Validate(map[string]any{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "artist", verr.Key)
}

func TestValidate_UnknownKeyRejected(t *testing.T) {
	s := Schema{"artist": String()}

	err := s.Validate(map[string]any{"artist": "Amy Winehouse", "limit": 10})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "limit", verr.Key)
}

func TestValidate_IntAcceptsJSONNumbers(t *testing.T) {
	s := Schema{"limit": Int()}

	assert.NoError(t, s.Validate(map[string]any{"limit": 5}))
	assert.NoError(t, s.Validate(map[string]any{"limit": json.Number("5")}))
	assert.NoError(t, s.Validate(map[string]any{"limit": float64(5)}))
	assert.Error(t, s.Validate(map[string]any{"limit": 5.5}))
	assert.Error(t, s.Validate(map[string]any{"limit": "five"}))
}

func TestValidate_OptionalField(t *testing.T) {
	s := Schema{"company": Optional(String())}

	assert.NoError(t, s.Validate(map[string]any{}))
	assert.NoError(t, s.Validate(map[string]any{"company": "Acme"}))
	assert.Error(t, s.Validate(map[string]any{"company": 3}))
}
