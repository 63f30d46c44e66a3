package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// OTP issues and verifies one-time passcodes. A code is a keyed hash of
// (email, issuance minute) and is never stored: verification recomputes
// it from the shared seed. A code stays valid for the whole trailing
// window of WindowMinutes, which widens the replay surface in exchange
// for usability; that trade-off is intentional.
type OTP struct {
	seed   []byte
	window int

	now func() time.Time
}

const DefaultWindowMinutes = 10

func NewOTP(seed []byte, windowMinutes int) *OTP {
	if windowMinutes <= 0 {
		windowMinutes = DefaultWindowMinutes
	}
	return &OTP{
		seed:   seed,
		window: windowMinutes,
		now:    time.Now,
	}
}

// Generate returns the code for the current minute.
func (o *OTP) Generate(email string) string {
	return o.GenerateAt(email, o.currentMinute())
}

// GenerateAt computes the code for a specific minute.
func (o *OTP) GenerateAt(email string, minute int64) string {
	mac := hmac.New(sha256.New, o.seed)
	fmt.Fprintf(mac, "%s:%d", email, minute)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyAt compares the claimed code against the expected code for one
// minute using a constant-time comparison. It never reports why a code
// failed.
func (o *OTP) VerifyAt(email string, minute int64, code string) bool {
	expected := o.GenerateAt(email, minute)
	return hmac.Equal([]byte(code), []byte(expected))
}

// Authenticate scans the validity window most-recent-minute first and
// reports whether the code matches any minute in it.
func (o *OTP) Authenticate(email, code string) bool {
	now := o.currentMinute()
	for delta := 0; delta < o.window; delta++ {
		if o.VerifyAt(email, now-int64(delta), code) {
			return true
		}
	}
	return false
}

func (o *OTP) currentMinute() int64 {
	return o.now().Unix() / 60
}
