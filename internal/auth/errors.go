package auth

import "errors"

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
	ErrUnauthorized  = errors.New("auth: unauthorized")
	ErrNotConfirmed  = errors.New("auth: email not confirmed")
)

// ErrInvalidToken indicates an access or refresh token failed validation.
var ErrInvalidToken = errors.New("invalid token")
