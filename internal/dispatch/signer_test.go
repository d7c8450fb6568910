package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSignature(t *testing.T) {
	payload := []byte(`{"hello":"world"}`)
	ts := int64(1700000000)

	sig1 := GenerateSignature("secret", ts, payload)
	sig2 := GenerateSignature("secret", ts, payload)
	assert.Equal(t, sig1, sig2, "signature must be deterministic")
	assert.Len(t, sig1, 64, "hex-encoded SHA256 is 64 chars")

	assert.NotEqual(t, sig1, GenerateSignature("other-secret", ts, payload))
	assert.NotEqual(t, sig1, GenerateSignature("secret", ts+1, payload))
	assert.NotEqual(t, sig1, GenerateSignature("secret", ts, []byte("tampered")))
}

func TestValidateSignature(t *testing.T) {
	payload := []byte("document body")
	now := time.Now().Unix()
	sig := GenerateSignature("secret", now, payload)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateSignature("secret", sig, now, payload, DefaultReplayWindow))
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := ValidateSignature("wrong", sig, now, payload, DefaultReplayWindow)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		err := ValidateSignature("secret", sig, now, []byte("tampered"), DefaultReplayWindow)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("outside replay window", func(t *testing.T) {
		old := now - int64((10 * time.Minute).Seconds())
		oldSig := GenerateSignature("secret", old, payload)
		err := ValidateSignature("secret", oldSig, old, payload, DefaultReplayWindow)
		assert.ErrorIs(t, err, ErrReplayWindowExceeded)
	})
}

func TestGenerateSecret(t *testing.T) {
	s1, err := GenerateSecret()
	require.NoError(t, err)
	s2, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, s1, 64)
	assert.NotEqual(t, s1, s2)
}
