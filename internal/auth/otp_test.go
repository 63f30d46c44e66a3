package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func otpAt(t *testing.T, minute int64) *OTP {
	t.Helper()
	o := NewOTP([]byte("test-seed"), 10)
	o.now = func() time.Time { return time.Unix(minute*60, 0) }
	return o
}

func TestOTPGenerateVerifyRoundTrip(t *testing.T) {
	o := otpAt(t, 1000)

	code := o.GenerateAt("a@x.org", 1000)
	require.Len(t, code, 64)

	assert.True(t, o.VerifyAt("a@x.org", 1000, code))
	assert.False(t, o.VerifyAt("a@x.org", 999, code), "code must be bound to its minute")
	assert.False(t, o.VerifyAt("b@x.org", 1000, code), "code must be bound to its email")
}

func TestOTPWrongCodeOfEqualLength(t *testing.T) {
	o := otpAt(t, 1000)

	code := o.GenerateAt("a@x.org", 1000)
	wrong := strings.Repeat("0", len(code))
	if wrong == code {
		wrong = strings.Repeat("1", len(code))
	}

	assert.False(t, o.VerifyAt("a@x.org", 1000, wrong))
	assert.False(t, o.Authenticate("a@x.org", wrong))
}

func TestOTPValidityWindow(t *testing.T) {
	const issued = int64(5000)
	o := otpAt(t, issued)
	code := o.Generate("a@x.org")

	// Accepted at issuance minute and for the following W-1 minutes.
	for delta := int64(0); delta < 10; delta++ {
		o.now = func() time.Time { return time.Unix((issued+delta)*60, 0) }
		assert.True(t, o.Authenticate("a@x.org", code), "minute +%d should accept", delta)
	}

	// Rejected once the window has fully passed.
	o.now = func() time.Time { return time.Unix((issued+10)*60, 0) }
	assert.False(t, o.Authenticate("a@x.org", code))
}

func TestOTPDefaultWindow(t *testing.T) {
	o := NewOTP([]byte("seed"), 0)
	assert.Equal(t, DefaultWindowMinutes, o.window)
}
