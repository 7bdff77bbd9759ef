package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidModel = errors.New("invalid model artifact")
)
