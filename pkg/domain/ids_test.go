package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "cardforge/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseCardID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseCardID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseCardID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseCardID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, CardID(validUUID), id)
		assert.Equal(t, validUUID.String(), id.String())
	})
}

// TestParseID_BoundaryInputs checks inputs that arrive straight from URL paths.
func TestParseID_BoundaryInputs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE cards;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUserID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()

	_, errUser := ParseUserID(validUUID)
	_, errSession := ParseSessionID(validUUID)
	_, errCard := ParseCardID(validUUID)
	require.NoError(t, errUser)
	require.NoError(t, errSession)
	require.NoError(t, errCard)

	for _, input := range []string{"", "invalid", uuid.Nil.String()} {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errUser := ParseUserID(input)
			_, errSession := ParseSessionID(input)
			_, errCard := ParseCardID(input)
			require.Error(t, errUser)
			require.Error(t, errSession)
			require.Error(t, errCard)
		})
	}
}

func TestNewIDs_AreNotNil(t *testing.T) {
	assert.False(t, NewUserID().IsNil())
	assert.False(t, NewSessionID().IsNil())
	assert.False(t, NewCardID().IsNil())
	assert.True(t, CardID{}.IsNil())
}

func TestIDsEncodeAsUUIDStrings(t *testing.T) {
	cardID := NewCardID()

	raw, err := json.Marshal(struct {
		ID CardID `json:"id"`
	}{cardID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+cardID.String()+`"}`, string(raw))

	var decoded struct {
		ID CardID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, cardID, decoded.ID)
}
