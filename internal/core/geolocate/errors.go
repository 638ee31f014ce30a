package geolocate

import (
	"context"
	"errors"
)

var (
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("geolocation position unavailable")
	ErrTimeout             = errors.New("geolocation timed out")
	ErrUnknown             = errors.New("geolocation failed")

	// ErrNoGeolocationOption is returned when no requested source can run.
	ErrNoGeolocationOption = errors.New("no geolocation option available")

	// errNotGranted marks a device attempt skipped because permission was
	// not granted. It is never broadcast.
	errNotGranted = errors.New("geolocation permission not granted")
)

// Kind categorizes a failed location attempt.
type Kind int

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindPositionUnavailable
	KindTimeout
)

var kindMessages = map[Kind]string{
	KindPermissionDenied:    "User denied the request for Geolocation.",
	KindPositionUnavailable: "Location information is unavailable.",
	KindTimeout:             "The request to get user location timed out.",
	KindUnknown:             "An unknown error occurred.",
}

var kindSentinels = map[Kind]error{
	KindPermissionDenied:    ErrPermissionDenied,
	KindPositionUnavailable: ErrPositionUnavailable,
	KindTimeout:             ErrTimeout,
	KindUnknown:             ErrUnknown,
}

// Error is a categorized location failure carrying the user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError returns the categorized error with its standard message.
func NewError(kind Kind) *Error {
	if _, ok := kindMessages[kind]; !ok {
		kind = KindUnknown
	}
	return &Error{Kind: kind, Message: kindMessages[kind]}
}

// FromCode maps a device position error code (1 denied, 2 unavailable,
// 3 timeout) to its categorized error.
func FromCode(code int) *Error {
	switch code {
	case 1:
		return NewError(KindPermissionDenied)
	case 2:
		return NewError(KindPositionUnavailable)
	case 3:
		return NewError(KindTimeout)
	default:
		return NewError(KindUnknown)
	}
}

// Categorize converts any device failure into an *Error.
func Categorize(err error) *Error {
	var e *Error
	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, context.DeadlineExceeded):
		ce := NewError(KindTimeout)
		ce.Err = err
		return ce
	default:
		ce := NewError(KindUnknown)
		ce.Err = err
		return ce
	}
}
