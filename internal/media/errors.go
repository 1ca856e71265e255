package media

import "errors"

var (
	// ErrStoreUnavailable indicates no object store is configured.
	ErrStoreUnavailable = errors.New("media store unavailable")
	// ErrProberUnavailable indicates the media prober is not configured.
	ErrProberUnavailable = errors.New("media prober unavailable")
	// ErrJanitorClosed is returned when work is scheduled after Shutdown.
	ErrJanitorClosed = errors.New("asset janitor closed")
)

// ErrUnsupportedMedia indicates an upload whose content type does not match
// the slot it was sent to.
var ErrUnsupportedMedia = errors.New("unsupported media type")
