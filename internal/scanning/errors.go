package scanning

import "errors"

var (
	// ErrNetworkFailure means the service was unreachable or answered with a non-success status
	ErrNetworkFailure = errors.New("analysis service unavailable")

	// ErrMalformedResponse means a success payload could not be turned into a report
	ErrMalformedResponse = errors.New("malformed analysis response")

	// ErrUnreadableImage means the image could not be decoded before it was sent to a model
	ErrUnreadableImage = errors.New("image could not be read")
)
