package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
)

func TestMergeFields(t *testing.T) {
	base := []byte(`{"id":"p1","name":"Alice","phone":"555","score":10}`)

	t.Run("copies named fields only", func(t *testing.T) {
		out, err := mergeFields(base, []byte(`{"id":"p1","name":"","score":80}`), []string{"score"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"p1","name":"Alice","phone":"555","score":80}`, string(out))
	})

	t.Run("absent field is cleared", func(t *testing.T) {
		out, err := mergeFields(base, []byte(`{"id":"p1"}`), []string{"phone"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"p1","name":"Alice","phone":null,"score":10}`, string(out))
	})

	t.Run("null base starts empty", func(t *testing.T) {
		out, err := mergeFields([]byte(`null`), []byte(`{"score":1}`), []string{"score"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"score":1}`, string(out))
	})

	t.Run("non-object rejected", func(t *testing.T) {
		_, err := mergeFields([]byte(`[1]`), []byte(`{}`), []string{"x"})
		assert.ErrorIs(t, err, domainerrors.ErrDeserialization)
	})
}

func TestUnionFields(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, unionFields([]string{"a", "b"}, []string{"b", "c"}))
	assert.Equal(t, []string{"a"}, unionFields(nil, []string{"a"}))
}
