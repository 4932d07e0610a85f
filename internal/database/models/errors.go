package models

import "errors"

// Errors shared by every package that reads or writes users.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrMissingFields  = errors.New("name and email are required")
)
