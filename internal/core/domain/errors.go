package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrSearchUnavailable = errors.New("search endpoint unavailable")
	ErrSuperseded        = errors.New("superseded by a newer query")
	ErrTourNotActive     = errors.New("tour is not active")
)
