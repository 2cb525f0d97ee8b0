package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "shardauth/pkg/domain-errors"
)

func TestUserID_UnmarshalJSON(t *testing.T) {
	var body struct {
		UserID UserID `json:"userId"`
	}

	t.Run("number", func(t *testing.T) {
		require.NoError(t, json.Unmarshal([]byte(`{"userId": 12}`), &body))
		assert.Equal(t, UserID("12"), body.UserID)
	})

	t.Run("string", func(t *testing.T) {
		require.NoError(t, json.Unmarshal([]byte(`{"userId": " 7 "}`), &body))
		assert.Equal(t, UserID("7"), body.UserID)
	})

	t.Run("null is zero", func(t *testing.T) {
		require.NoError(t, json.Unmarshal([]byte(`{"userId": null}`), &body))
		assert.True(t, body.UserID.IsZero())
	})

	t.Run("leading zeros are canonicalized", func(t *testing.T) {
		require.NoError(t, json.Unmarshal([]byte(`{"userId": " 01"}`), &body))
		assert.Equal(t, UserID("1"), body.UserID)
	})

	t.Run("empty string is zero", func(t *testing.T) {
		require.NoError(t, json.Unmarshal([]byte(`{"userId": "  "}`), &body))
		assert.True(t, body.UserID.IsZero())
	})

	t.Run("object is rejected", func(t *testing.T) {
		assert.Error(t, json.Unmarshal([]byte(`{"userId": {"a": 1}}`), &body))
	})
}

func TestUserID_RejectsNonCanonicalNumbers(t *testing.T) {
	for _, raw := range []string{`1.0`, `1e0`, `-2`, `"-2"`, `"abc"`, `"1.5"`, `18446744073709551616`} {
		t.Run(raw, func(t *testing.T) {
			var u UserID
			err := json.Unmarshal([]byte(raw), &u)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		})
	}
}

func TestUserIDFromIndex(t *testing.T) {
	assert.Equal(t, UserID("42"), UserIDFromIndex(42))
}
