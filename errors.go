package grvl

import (
	"github.com/pkg/errors"
)

var (
	// ErrEmptyTrace is returned when trace has no points at all
	ErrEmptyTrace = errors.New("trace has no points")

	errElevationMismatch = errors.New("elevation provider returned unexpected number of values")
)
