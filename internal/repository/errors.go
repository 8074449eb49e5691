package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a uniqueness constraint rejected the write.
	ErrDuplicate = errors.New("repository: duplicate record")
	// ErrTokenExpired indicates a purpose token exists but its TTL elapsed.
	ErrTokenExpired = errors.New("repository: token expired")
	// ErrTokenConsumed indicates a purpose token was already redeemed.
	ErrTokenConsumed = errors.New("repository: token consumed")
	// ErrTokenPurposeMismatch indicates a purpose token was presented for the
	// wrong purpose or account.
	ErrTokenPurposeMismatch = errors.New("repository: token purpose mismatch")
)
