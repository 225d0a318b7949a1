package domain

import "errors"

var (
	ErrCatalogFetch   = errors.New("catalog fetch failed")
	ErrSetFetch       = errors.New("set fetch failed")
	ErrMalformedFrame = errors.New("malformed track update frame")
	ErrInvalidPath    = errors.New("invalid set path")
)
