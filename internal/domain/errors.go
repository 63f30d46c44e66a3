package domain

import "errors"

var (
	// Input
	ErrValidation = errors.New("validation failed")

	// Authentication
	ErrRateLimited    = errors.New("too many attempts, try again later")
	ErrInvalidCode    = errors.New("invalid or expired code")
	ErrSessionInvalid = errors.New("session is invalid or expired")

	// Lending transitions
	ErrAlreadyBorrowed = errors.New("item is already borrowed by this patron")
	ErrLoanNotFound    = errors.New("no active loan found")
	ErrItemUnavailable = errors.New("item is not available for lending")
	ErrLoanNotRequired = errors.New("item is open access, no loan required")

	// Catalog
	ErrItemNotFound  = errors.New("item not found")
	ErrItemExists    = errors.New("item already exists")
	ErrInvalidFormat = errors.New("unsupported file format")
	ErrFileTooLarge  = errors.New("file too large")

	// Infrastructure
	ErrStorageUnavailable = errors.New("object storage unavailable")
)
