package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/lending/internal/auth"
	"github.com/shelfwise/lending/internal/domain"
)

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
	fail  bool
	sent  int
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{codes: make(map[string]string)}
}

func (m *captureMailer) SendOTP(toEmail, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.codes[toEmail] = code
	m.sent++
	return nil
}

func (m *captureMailer) lastCode(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

type authFixture struct {
	svc    AuthService
	mailer *captureMailer
	bus    *mockBus
}

func newAuthFixture(limit int) *authFixture {
	mail := newCaptureMailer()
	bus := &mockBus{}
	svc := NewAuthService(
		auth.NewOTP([]byte("test-seed"), auth.DefaultWindowMinutes),
		auth.NewSessionCodec([]byte("test-session-secret"), time.Hour),
		auth.NewRateLimiter(auth.NewMemoryAttemptStore(), limit, time.Minute),
		mail,
		bus,
	)
	return &authFixture{svc: svc, mailer: mail, bus: bus}
}

func TestIssueAndAuthenticateOTP(t *testing.T) {
	f := newAuthFixture(10)
	ctx := context.Background()

	err := f.svc.IssueOTP(ctx, &domain.OTPRequest{Email: "Reader@X.org"}, "203.0.113.9")
	require.NoError(t, err)

	// The mailer saw the normalized address.
	code := f.mailer.lastCode("reader@x.org")
	require.NotEmpty(t, code)
	assert.Len(t, code, 64)
	assert.True(t, f.bus.published("auth.otp.issued"))

	token, expiresIn, err := f.svc.AuthenticateOTP(ctx, &domain.LoginRequest{
		Email: "reader@x.org",
		Code:  code,
	}, "203.0.113.9")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, int64(3600), expiresIn)

	email, err := f.svc.ValidateSession(token)
	require.NoError(t, err)
	assert.Equal(t, "reader@x.org", email)
}

func TestAuthenticateRejectsWrongCode(t *testing.T) {
	f := newAuthFixture(10)
	ctx := context.Background()

	require.NoError(t, f.svc.IssueOTP(ctx, &domain.OTPRequest{Email: "reader@x.org"}, ""))
	code := f.mailer.lastCode("reader@x.org")

	wrong := strings.Repeat("0", len(code))
	if wrong == code {
		wrong = strings.Repeat("1", len(code))
	}
	_, _, err := f.svc.AuthenticateOTP(ctx, &domain.LoginRequest{
		Email: "reader@x.org",
		Code:  wrong,
	}, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidCode))
}

func TestAuthenticateCodeBoundToEmail(t *testing.T) {
	f := newAuthFixture(10)
	ctx := context.Background()

	require.NoError(t, f.svc.IssueOTP(ctx, &domain.OTPRequest{Email: "a@x.org"}, ""))
	code := f.mailer.lastCode("a@x.org")

	_, _, err := f.svc.AuthenticateOTP(ctx, &domain.LoginRequest{
		Email: "b@x.org",
		Code:  code,
	}, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidCode))
}

func TestIssueOTPRejectsInvalidEmail(t *testing.T) {
	f := newAuthFixture(10)

	err := f.svc.IssueOTP(context.Background(), &domain.OTPRequest{Email: "not-an-email"}, "")
	assert.Error(t, err)
	assert.Equal(t, 0, f.mailer.sent)
}

func TestIssueOTPRateLimitedPerEmail(t *testing.T) {
	f := newAuthFixture(5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, f.svc.IssueOTP(ctx, &domain.OTPRequest{Email: "reader@x.org"}, ""))
	}

	err := f.svc.IssueOTP(ctx, &domain.OTPRequest{Email: "reader@x.org"}, "")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))

	// Another patron's budget is untouched.
	assert.NoError(t, f.svc.IssueOTP(ctx, &domain.OTPRequest{Email: "other@x.org"}, ""))
}

func TestIssueOTPRateLimitedPerIP(t *testing.T) {
	f := newAuthFixture(5)
	ctx := context.Background()

	// Rotating emails from the same address still burns the IP budget.
	for i := 0; i < 5; i++ {
		require.NoError(t, f.svc.IssueOTP(ctx, &domain.OTPRequest{
			Email: fmt.Sprintf("p%d@x.org", i),
		}, "203.0.113.9"))
	}

	err := f.svc.IssueOTP(ctx, &domain.OTPRequest{Email: "p9@x.org"}, "203.0.113.9")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestAuthenticateCountsTowardLimit(t *testing.T) {
	f := newAuthFixture(5)
	ctx := context.Background()

	require.NoError(t, f.svc.IssueOTP(ctx, &domain.OTPRequest{Email: "reader@x.org"}, ""))
	code := f.mailer.lastCode("reader@x.org")

	// Issue plus four failed logins exhaust the budget of five.
	bad := strings.Repeat("0", len(code))
	for i := 0; i < 4; i++ {
		_, _, err := f.svc.AuthenticateOTP(ctx, &domain.LoginRequest{
			Email: "reader@x.org",
			Code:  bad,
		}, "")
		require.True(t, errors.Is(err, domain.ErrInvalidCode))
	}

	// The sixth submission is refused before the code is even checked,
	// correct or not.
	_, _, err := f.svc.AuthenticateOTP(ctx, &domain.LoginRequest{
		Email: "reader@x.org",
		Code:  code,
	}, "")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestMailFailureDoesNotSurfaceToCaller(t *testing.T) {
	f := newAuthFixture(10)
	f.mailer.fail = true

	err := f.svc.IssueOTP(context.Background(), &domain.OTPRequest{Email: "reader@x.org"}, "")
	assert.NoError(t, err)
}

func TestValidateSessionRejectsGarbage(t *testing.T) {
	f := newAuthFixture(10)

	_, err := f.svc.ValidateSession("not-a-token")
	assert.True(t, errors.Is(err, domain.ErrSessionInvalid))
}
