package workflow

import (
	"errors"

	"github.com/zombor/label-scan/internal/imagesource"
	"github.com/zombor/label-scan/internal/scanning"
)

// FailureKind classifies a failed acquisition or analysis attempt
type FailureKind string

const (
	DeviceUnavailable FailureKind = "device_unavailable"
	NetworkFailure    FailureKind = "network_failure"
	MalformedResponse FailureKind = "malformed_response"
	ImageUnreadable   FailureKind = "image_unreadable"
)

var failureMessages = map[FailureKind]string{
	DeviceUnavailable: "The camera is not available. Allow camera access or choose a photo from your gallery.",
	NetworkFailure:    "We couldn't analyze this label. Check your connection and try again.",
	// Shown exactly like a network failure
	MalformedResponse: "We couldn't analyze this label. Check your connection and try again.",
	ImageUnreadable:   "That file couldn't be read. Choose another photo.",
}

// Failure is the dismissable message shown in the scan view after a failed attempt
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Message: failureMessages[kind], Err: err}
}

// classify maps an acquisition or analysis error to its failure kind.
// Timeouts and anything unrecognised count as network failures.
func classify(err error) *Failure {
	switch {
	case errors.Is(err, imagesource.ErrDeviceUnavailable):
		return newFailure(DeviceUnavailable, err)
	case errors.Is(err, scanning.ErrMalformedResponse):
		return newFailure(MalformedResponse, err)
	case errors.Is(err, scanning.ErrUnreadableImage):
		return newFailure(ImageUnreadable, err)
	default:
		return newFailure(NetworkFailure, err)
	}
}
