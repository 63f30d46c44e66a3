package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/lending/internal/domain"
)

func TestSessionRoundTrip(t *testing.T) {
	codec := NewSessionCodec([]byte("secret"), time.Hour)

	token, err := codec.Mint("a@x.org")
	require.NoError(t, err)

	email, err := codec.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.org", email)
}

func TestSessionExpired(t *testing.T) {
	codec := NewSessionCodec([]byte("secret"), -time.Minute)

	token, err := codec.Mint("a@x.org")
	require.NoError(t, err)

	_, err = codec.Validate(token)
	assert.True(t, errors.Is(err, domain.ErrSessionInvalid))
}

func TestSessionTampered(t *testing.T) {
	codec := NewSessionCodec([]byte("secret"), time.Hour)

	token, err := codec.Mint("a@x.org")
	require.NoError(t, err)

	// Flip one byte of the payload.
	raw := []byte(token)
	mid := len(raw) / 2
	if raw[mid] == 'A' {
		raw[mid] = 'B'
	} else {
		raw[mid] = 'A'
	}

	_, err = codec.Validate(string(raw))
	assert.True(t, errors.Is(err, domain.ErrSessionInvalid))
}

func TestSessionWrongSecret(t *testing.T) {
	token, err := NewSessionCodec([]byte("secret"), time.Hour).Mint("a@x.org")
	require.NoError(t, err)

	_, err = NewSessionCodec([]byte("other"), time.Hour).Validate(token)
	assert.True(t, errors.Is(err, domain.ErrSessionInvalid))
}

func TestSessionGarbage(t *testing.T) {
	codec := NewSessionCodec([]byte("secret"), time.Hour)

	_, err := codec.Validate("not-a-token")
	assert.True(t, errors.Is(err, domain.ErrSessionInvalid))
}
