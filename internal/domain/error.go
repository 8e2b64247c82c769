package domain

import "errors"

var (
	ErrNotFound           = errors.New("item not found")
	ErrMalformedRecord    = errors.New("malformed credential record")
	ErrMalformedToken     = errors.New("malformed verification token")
	ErrUnsupportedVersion = errors.New("unsupported token version")
	ErrTokenTooLarge      = errors.New("token exceeds QR payload budget")
	ErrLedgerCorrupted    = errors.New("ledger failed self-check")
)
