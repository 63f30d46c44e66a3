package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shelfwise/lending/internal/auth"
	"github.com/shelfwise/lending/internal/domain"
	"github.com/shelfwise/lending/internal/mailer"
	"github.com/shelfwise/lending/pkg/events"
	"github.com/shelfwise/lending/pkg/logger"
)

type AuthService interface {
	IssueOTP(ctx context.Context, req *domain.OTPRequest, clientIP string) error
	AuthenticateOTP(ctx context.Context, req *domain.LoginRequest, clientIP string) (token string, expiresIn int64, err error)
	ValidateSession(token string) (email string, err error)
	SessionTTL() time.Duration
}

type authService struct {
	otp      *auth.OTP
	sessions *auth.SessionCodec
	limiter  *auth.RateLimiter
	mailer   mailer.Service
	eventBus events.Publisher
}

func NewAuthService(
	otp *auth.OTP,
	sessions *auth.SessionCodec,
	limiter *auth.RateLimiter,
	mailer mailer.Service,
	eventBus events.Publisher,
) AuthService {
	return &authService{
		otp:      otp,
		sessions: sessions,
		limiter:  limiter,
		mailer:   mailer,
		eventBus: eventBus,
	}
}

func (s *authService) IssueOTP(ctx context.Context, req *domain.OTPRequest, clientIP string) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	// Rate-limit issuance by both email and caller IP. The limit never
	// reveals whether the email is known to the system.
	if !s.allow(ctx, req.Email, clientIP) {
		return domain.ErrRateLimited
	}

	code := s.otp.Generate(req.Email)

	if err := s.mailer.SendOTP(req.Email, code); err != nil {
		// The code stays verifiable by recomputation, so a delivery
		// failure is logged rather than surfaced.
		logger.ErrorContext(ctx, "Failed to send OTP email", "error", err, "email", req.Email)
	}

	event := events.OTPIssuedEvent{Email: req.Email, IssuedAt: time.Now()}
	if err := s.eventBus.Publish(ctx, events.OTPIssued, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish OTP issued event", "error", err)
	}

	return nil
}

func (s *authService) AuthenticateOTP(ctx context.Context, req *domain.LoginRequest, clientIP string) (string, int64, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return "", 0, err
	}

	// One recorded attempt per submission, checked before any code
	// comparison.
	if !s.allow(ctx, req.Email, clientIP) {
		return "", 0, domain.ErrRateLimited
	}

	if !s.otp.Authenticate(req.Email, req.Code) {
		// Wrong and expired codes are indistinguishable to the caller.
		return "", 0, domain.ErrInvalidCode
	}

	token, err := s.sessions.Mint(req.Email)
	if err != nil {
		return "", 0, fmt.Errorf("failed to mint session token: %w", err)
	}

	return token, int64(s.sessions.TTL().Seconds()), nil
}

func (s *authService) ValidateSession(token string) (string, error) {
	return s.sessions.Validate(token)
}

func (s *authService) SessionTTL() time.Duration {
	return s.sessions.TTL()
}

func (s *authService) allow(ctx context.Context, email, clientIP string) bool {
	allowed := s.limiter.Allow(ctx, "otp:email:"+email)
	if clientIP != "" {
		// Both keys are always recorded so an attacker cannot spend the
		// email budget without spending the IP budget.
		if !s.limiter.Allow(ctx, "otp:ip:"+clientIP) {
			allowed = false
		}
	}
	return allowed
}
