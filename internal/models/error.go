package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// Authentication flow errors. Bad username and bad password deliberately
// collapse into the same ErrInvalidCredentials so responses cannot be used
// for username enumeration.
var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrDeliveryFailed      = errors.New("failed to deliver login code")
	ErrInvalidPendingToken = errors.New("invalid or expired pending token")
	ErrNoActiveChallenge   = errors.New("no active login challenge")
	ErrExpiredChallenge    = errors.New("login challenge expired")
	ErrCodeMismatch        = errors.New("login code mismatch")
	ErrChallengeLockedOut  = errors.New("login challenge locked out")
)
