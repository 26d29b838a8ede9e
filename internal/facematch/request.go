// Package facematch holds the request, outcome and result types of a
// target-versus-comparisons face match.
package facematch

import (
	"errors"
	"net/http"
)

// Upload is one image file received in a verification request.
type Upload struct {
	Filename string
	Data     []byte
}

// Request is a validated verification request: one target, at least one comparison.
type Request struct {
	Target      Upload
	Comparisons []Upload
}

// ValidationError rejects a request before any verification work starts.
type ValidationError struct {
	Message string
	Status  int
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrMissingTarget = &ValidationError{
		Message: "No target image provided",
		Status:  http.StatusBadRequest,
	}
	ErrMultipleTargets = &ValidationError{
		Message: "Exactly one target image must be provided",
		Status:  http.StatusBadRequest,
	}
	ErrMissingComparisons = &ValidationError{
		Message: "No comparison images provided",
		Status:  http.StatusBadRequest,
	}
)

// NewRequest validates field cardinality and builds a Request.
func NewRequest(targets, comparisons []Upload) (*Request, error) {
	switch {
	case len(targets) == 0:
		return nil, ErrMissingTarget
	case len(targets) > 1:
		return nil, ErrMultipleTargets
	case len(comparisons) == 0:
		return nil, ErrMissingComparisons
	}
	return &Request{Target: targets[0], Comparisons: comparisons}, nil
}

// AsValidationError extracts a ValidationError from err's chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
