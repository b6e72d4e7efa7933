package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrTransient is returned for temporary failures that might resolve
	// on retry, such as rate limits, network timeouts, and service-side
	// outages. The queue retries these with backoff.
	ErrTransient = errors.New("transient generation service error")

	// ErrPermanent is returned for failures that will not resolve on retry,
	// such as malformed requests, authentication failures, and responses
	// blocked by safety filters. These fail the task on the first attempt.
	ErrPermanent = errors.New("permanent generation service error")

	// ErrInvalidResponse is returned when the service response cannot be
	// used (nil response, no candidates, empty content). It is permanent.
	ErrInvalidResponse = errors.New("invalid response from generation service")

	// ErrContentBlocked is returned when the service blocks the content due
	// to safety filters. It is permanent.
	ErrContentBlocked = errors.New("content blocked by generation service safety filters")

	// ErrInvalidConfig is returned when the invoker configuration is invalid.
	ErrInvalidConfig = errors.New("invalid invoker configuration")
)

// IsTransient reports whether the error is classified as transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether the error is classified as permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
