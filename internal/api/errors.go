package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies where in the response pipeline a generation failed
type ErrorKind string

const (
	KindTransport ErrorKind = "transport" // Request failed or non-2xx status
	KindEmpty     ErrorKind = "empty"     // Blank response body
	KindProtocol  ErrorKind = "protocol"  // Envelope missing the generated text
	KindMalformed ErrorKind = "malformed" // Generated text is not the expected JSON payload
)

// GenerationError is the single failure type of a generation call
type GenerationError struct {
	Kind       ErrorKind
	StatusCode int    // HTTP status for transport failures, 0 otherwise
	Detail     string // Human-readable message shown to the player
	Err        error  // Underlying cause, if any
}

func (e *GenerationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("generation failed (%s)", e.Kind)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a generation error, or "" for any other error
func KindOf(err error) ErrorKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return ""
}
