package service

import (
	"errors"
	"fmt"
)

// Категории ошибок. Конкретные ошибки оборачивают категорию,
// поэтому errors.Is(err, ErrValidation) работает для любой ошибки валидации.
var (
	ErrValidation = errors.New("validation error")
	ErrCapacity   = errors.New("capacity error")
	ErrLookup     = errors.New("lookup error")
)

var (
	ErrInvalidURL         = fmt.Errorf("%w: invalid url", ErrValidation)
	ErrInvalidValidity    = fmt.Errorf("%w: invalid validity period", ErrValidation)
	ErrInvalidShortcode   = fmt.Errorf("%w: shortcode must be alphanumeric", ErrValidation)
	ErrDuplicateShortcode = fmt.Errorf("%w: shortcode already in use", ErrValidation)
	ErrEmptyBatch         = fmt.Errorf("%w: no links submitted", ErrValidation)
	ErrBatchTooLarge      = fmt.Errorf("%w: too many links in one submission", ErrValidation)

	ErrStoreFull          = fmt.Errorf("%w: link store is full", ErrCapacity)
	ErrCodeSpaceExhausted = fmt.Errorf("%w: could not generate a unique shortcode", ErrCapacity)

	ErrNotFound = fmt.Errorf("%w: url not found", ErrLookup)
	ErrExpired  = fmt.Errorf("%w: url has expired", ErrLookup)
)
