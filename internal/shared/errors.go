package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition indicates an illegal state-machine edge.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrInvalidExpiry indicates a missing or past expiry date on publish.
	ErrInvalidExpiry = errors.New("expiry date missing or in the past")
	// ErrExpired indicates the quotation lapsed before the attempted action.
	ErrExpired = errors.New("quotation expired")
	// ErrInvalidLineItem indicates a negative quantity or unit cost.
	ErrInvalidLineItem = errors.New("invalid line item")
	// ErrInvalidArgument indicates a request that fails domain validation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOverpayment indicates allocation leftover after all installments are full.
	ErrOverpayment = errors.New("payment exceeds outstanding balance")
	// ErrUnauthorized indicates a role/visibility violation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
