package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceFailure covers any failure calling the model: network, quota, timeout.
	ErrServiceFailure = errors.New("AI_SERVICE_FAILURE")

	ErrProviderUnavailable = fmt.Errorf("%w: ai provider unavailable", ErrServiceFailure)
	ErrInferenceTimeout    = fmt.Errorf("%w: ai inference timeout", ErrServiceFailure)
	ErrInvalidResponse     = fmt.Errorf("%w: ai provider returned invalid response", ErrServiceFailure)

	// ErrParseFailure means the model replied but the reply is not a usable evaluation.
	ErrParseFailure = errors.New("PARSE_FAILURE")
)
