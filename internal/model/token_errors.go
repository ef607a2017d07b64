package model

import "errors"

var (
	// ErrTokenExpired means the signature is valid but the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("token invalid")
)
