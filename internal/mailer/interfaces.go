package mailer

// Service delivers one-time passcodes to patrons. Delivery is
// best-effort: the caller logs failures but the code stays verifiable,
// since it is recomputed rather than stored.
type Service interface {
	SendOTP(toEmail, code string) error
}
