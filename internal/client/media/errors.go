package media

import "fmt"

// Cause distinguishes why a device could not be captured. Each cause maps
// to different user guidance, so they must stay separable.
type Cause string

const (
	CauseDenied   Cause = "denied"
	CauseNotFound Cause = "not-found"
	CauseBusy     Cause = "busy"
)

type AcquireError struct {
	Kind  Kind
	Cause Cause
	Err   error
}

func (e *AcquireError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquire %s (%s): %v", e.Kind, e.Cause, e.Err)
	}
	return fmt.Sprintf("acquire %s (%s)", e.Kind, e.Cause)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// Guidance returns the actionable message shown to the user for this
// failure sub-kind.
func (e *AcquireError) Guidance() string {
	device := "microphone"
	if e.Kind != KindAudio {
		device = "camera"
	}
	switch e.Cause {
	case CauseDenied:
		return "Permission to use your " + device + " was denied. Allow access in your system settings and rejoin."
	case CauseNotFound:
		return "No " + device + " was found. Plug one in or continue without it."
	case CauseBusy:
		return "Your " + device + " did not respond. Another application may be using it; close it and retry."
	default:
		return "Could not access your " + device + "."
	}
}

func NewAcquireError(kind Kind, cause Cause, err error) *AcquireError {
	return &AcquireError{Kind: kind, Cause: cause, Err: err}
}
