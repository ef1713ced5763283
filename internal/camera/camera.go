// Package camera acquires and releases live capture devices.
//
// A Controller owns at most one open Feed at a time. Devices are resolved from
// source strings (a file or directory, a network camera snapshot URL, or a
// local webcam when built with the gocv tag) and selected by facing mode.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
)

// State is the activation state of the capture session.
type State int

const (
	StateInactive State = iota
	StateRequesting
	StateActive
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "Inactive"
	case StateRequesting:
		return "Requesting"
	case StateActive:
		return "Active"
	case StateDenied:
		return "Denied"
	default:
		return "Unknown"
	}
}

// Facing mirrors the facingMode video constraint.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Constraints describe the requested video device.
type Constraints struct {
	Facing Facing
}

// RearCamera is what the scanner asks for: a rear-facing video device.
var RearCamera = Constraints{Facing: FacingEnvironment}

// Feed is a live video feed from an acquired device.
type Feed interface {
	// Dimensions reports the frame size the device advertises, or zero when
	// the device doesn't know yet.
	Dimensions() (width, height int)
	// Frame returns the current frame.
	Frame(ctx context.Context) (image.Image, error)
	// Close stops all tracks and releases the device. Idempotent.
	Close() error
}

// Device can be opened into a Feed.
type Device interface {
	Name() string
	Open(ctx context.Context, c Constraints) (Feed, error)
}

// SecureContexter is implemented by devices whose transport may be insecure.
// Devices that don't implement it are treated as secure.
type SecureContexter interface {
	SecureContext() bool
}

var (
	ErrInsecureContext    = errors.New("camera requires a secure context")
	ErrPermissionDenied   = errors.New("camera permission denied")
	ErrDeviceUnavailable  = errors.New("camera device unavailable")
	ErrDeviceBusy         = errors.New("camera device is in use by another process")
	ErrAcquisitionPending = errors.New("camera acquisition already in progress")
	ErrAcquisitionAborted = errors.New("camera stopped while acquisition was in progress")
	ErrFeedClosed         = errors.New("camera feed closed")
	ErrNoFrame            = errors.New("camera returned no frame")
)

// FailureReason classifies why acquisition failed.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonInsecureContext
	ReasonPermissionDenied
	ReasonDeviceError
)

func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonInsecureContext:
		return "insecure-context"
	case ReasonPermissionDenied:
		return "permission-denied"
	case ReasonDeviceError:
		return "device-error"
	default:
		return "unknown"
	}
}

// Classify maps an acquisition error to a FailureReason.
func Classify(err error) FailureReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrInsecureContext):
		return ReasonInsecureContext
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, os.ErrPermission):
		return ReasonPermissionDenied
	default:
		return ReasonDeviceError
	}
}

// AcquisitionError is returned by Controller.Start when the device could not
// be acquired. Retry is always possible.
type AcquisitionError struct {
	Device string
	Reason FailureReason
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s (%s): %v", e.Device, e.Reason, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}
