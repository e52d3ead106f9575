package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pollster/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
//
// Justification: IDs arrive from token claims and URL parameters; the parse
// functions are the only trust boundary for them.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParsePollID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseOptionID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
		assert.Equal(t, validUUID.String(), id.String())
	})
}

func TestNewIDs(t *testing.T) {
	assert.False(t, NewPollID().IsNil())
	assert.NotEqual(t, NewOptionID(), NewOptionID())
	assert.True(t, UserID{}.IsNil())
}

func TestIDsEncodeAsStrings(t *testing.T) {
	pollID := NewPollID()
	raw, err := json.Marshal(struct {
		ID PollID `json:"id"`
	}{pollID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+pollID.String()+`"}`, string(raw))

	var decoded struct {
		ID PollID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, pollID, decoded.ID)
}
