package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - centralized error definitions
var (
	// Load-time errors. A failed load never leaves a partially
	// populated table behind.
	ErrFileNotFound   = errors.New("file not found")
	ErrMalformedTable = errors.New("malformed table")
	ErrEmptySheet     = errors.New("sheet contains no rows")

	// Schema errors
	ErrUnknownColumn    = errors.New("unknown column")
	ErrInvalidTemplate  = errors.New("invalid parser template")
	ErrTemplateNotFound = errors.New("parser template not found")

	// Request errors
	ErrUnknownVariable = errors.New("unknown variable")
	ErrInvalidPolicy   = errors.New("invalid duplicate-value policy")
	ErrInvalidRange    = errors.New("invalid chart range")

	// Statistics errors
	ErrInsufficientData   = errors.New("insufficient data for analysis")
	ErrSingularCovariance = errors.New("covariance matrix is singular")
)

// Error constructors with context
func NewFileNotFoundError(path string) error {
	return fmt.Errorf("%w: %s", ErrFileNotFound, path)
}

func NewMalformedTableError(row, got, want int) error {
	return fmt.Errorf("%w: row %d has %d cells, header has %d", ErrMalformedTable, row, got, want)
}

func NewUnknownColumnError(name string, columns []string) error {
	return fmt.Errorf("%w: %q not in [%s]", ErrUnknownColumn, name, strings.Join(columns, ", "))
}

func NewUnknownVariableError(name string, known []string) error {
	return fmt.Errorf("%w: %q not in [%s]", ErrUnknownVariable, name, strings.Join(known, ", "))
}

func NewInvalidPolicyError(policy string, valid []string) error {
	return fmt.Errorf("%w: %q, must be one of [%s]", ErrInvalidPolicy, policy, strings.Join(valid, ", "))
}

func NewInvalidRangeError(start, stop, n int) error {
	return fmt.Errorf("%w: (%d, %d) for series of length %d", ErrInvalidRange, start, stop, n)
}

// Error checking helpers
func IsLoadError(err error) bool {
	return errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrMalformedTable) ||
		errors.Is(err, ErrEmptySheet)
}

func IsSchemaError(err error) bool {
	return errors.Is(err, ErrUnknownColumn) ||
		errors.Is(err, ErrInvalidTemplate) ||
		errors.Is(err, ErrTemplateNotFound)
}

func IsRequestError(err error) bool {
	return errors.Is(err, ErrUnknownVariable) ||
		errors.Is(err, ErrInvalidPolicy) ||
		errors.Is(err, ErrInvalidRange)
}
