package services

import "errors"

// Terminal, user-visible outcomes of family operations. Handlers map
// these onto HTTP statuses; nothing here is retried internally.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid invite state")
	ErrExpired          = errors.New("invite expired")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("already in another family")
	ErrGroupFull        = errors.New("family group is full")
	ErrInvalidOperation = errors.New("invalid operation")
)
