// Package errs defines the recoverable/fatal error taxonomy shared by the
// generator and operator binaries.
package errs

import "github.com/pkg/errors"

// Sentinel causes, matched with errors.Is after a pkg/errors.Wrap.
var (
	// ErrConnect indicates the initial API connection or version probe failed.
	ErrConnect = errors.New("connect failed")

	// ErrList indicates a list call against Services, Pods, or owned resources failed.
	ErrList = errors.New("list failed")

	// ErrApply indicates a server-side apply of a DestinationRule or VirtualService failed.
	ErrApply = errors.New("apply failed")

	// ErrMissingKey indicates an object from the API lacked a required field.
	ErrMissingKey = errors.New("object missing required key")

	// ErrFinalizer indicates the finalizer-handshake patch failed.
	ErrFinalizer = errors.New("finalizer patch failed")

	// ErrEventPublish indicates publishing a Kubernetes Event failed.
	ErrEventPublish = errors.New("event publish failed")
)

// Wrap annotates err with msg and marks it as sentinel via errors.Wrap,
// preserving sentinel for errors.Is(result, sentinel) checks.
func Wrap(sentinel error, err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(&wrapped{sentinel: sentinel, cause: err}, msg)
}

type wrapped struct {
	sentinel error
	cause    error
}

func (w *wrapped) Error() string { return w.cause.Error() }
func (w *wrapped) Unwrap() error { return w.cause }
func (w *wrapped) Is(target error) bool {
	return target == w.sentinel
}
