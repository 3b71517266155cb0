package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.Get("translation-api")
	assert.False(t, ok)

	assert.NoError(t, store.Put("translation-api", "secret"))

	secret, ok := store.Get("translation-api")
	assert.True(t, ok)
	assert.Equal(t, "secret", secret)
}

func TestEnvStoreMapsServiceIDToVariable(t *testing.T) {
	t.Setenv("VOICETRA_CREDENTIAL_TRANSLATION_API", "env-secret")

	store := NewEnvStore()
	secret, ok := store.Get("translation-api")
	assert.True(t, ok)
	assert.Equal(t, "env-secret", secret)

	_, ok = store.Get("unknown-service")
	assert.False(t, ok)
}

func TestEnvStoreIsReadOnly(t *testing.T) {
	err := NewEnvStore().Put("translation-api", "secret")
	assert.ErrorIs(t, err, ErrStoreFailed)
}
