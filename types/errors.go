package types

import (
	"errors"
	"fmt"
)

// ValidationKind enumerates the validation error kinds a family's gate can
// produce. Kinds are stable identifiers; callers surface them directly
// instead of a generic "conversion failed" message.
type ValidationKind string

const (
	// ValidationMissingFile indicates a declared required file does not exist.
	ValidationMissingFile ValidationKind = "missing_file"
	// ValidationInvalidPath indicates a supplied path is malformed or points
	// at the wrong kind of filesystem entry.
	ValidationInvalidPath ValidationKind = "invalid_path"
	// ValidationMalformedMetadata indicates a required file exists but its
	// contents could not be understood (e.g. bad params.json).
	ValidationMalformedMetadata ValidationKind = "malformed_metadata"
	// ValidationUnsupportedVersion indicates the model file carries a format
	// version the pipeline cannot convert.
	ValidationUnsupportedVersion ValidationKind = "unsupported_version"
)

// ValidationError is a typed, family-specific validation failure. It is
// raised before any conversion process spawns and is fully recoverable:
// the caller can fix inputs and re-validate with no side effects.
type ValidationError struct {
	// Family is the model family whose gate rejected the data.
	Family Family
	// Kind classifies the failure.
	Kind ValidationKind
	// Path is the offending file location, when one exists.
	Path string
	// Detail is an optional human-readable elaboration.
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s validation failed (%s)", e.Family, e.Kind)
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// AsValidation extracts a ValidationError from err, if present.
func AsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	_, ok := AsValidation(err)
	return ok
}
