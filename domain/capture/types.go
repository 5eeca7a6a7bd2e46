package capture

import "image"

// Grabber produces one frame per call. Implementations may reuse the
// returned image between calls.
type Grabber interface {
	Grab() (*image.RGBA, error)
}

// Sink receives tightly packed RGBA pixels. The slice is only valid during
// the call.
type Sink func(pix []byte, width, height int)

// ServiceContract exposes basic lifecycle control for capture services.
type ServiceContract interface {
	Start()
	Stop()
	Running() bool
	Stats() CaptureStats
}

var _ ServiceContract = (*Service)(nil)
