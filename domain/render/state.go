package render

import "errors"

// State is the lifecycle state of a GraphicsContext.
type State int32

const (
	StateUninitialized State = iota // nothing allocated, Init not run or failed
	StateReady                      // display, surface, context, program and target live
	StateLost                       // an operation or liveness probe failed
	StateRecovering                 // Recover in progress
	StateTerminated                 // shut down; every call fails fast
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateLost:
		return "lost"
	case StateRecovering:
		return "recovering"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

var (
	ErrTerminated   = errors.New("render: context terminated")
	ErrNotReady     = errors.New("render: context not ready")
	ErrContextLost  = errors.New("render: context lost")
	ErrNoTexture    = errors.New("render: unknown texture")
	ErrUploadBusy   = errors.New("render: upload queue full")
	ErrUploadClosed = errors.New("render: uploader closed")
	ErrOwnerClosed  = errors.New("render: owner closed")
	ErrBadSample    = errors.New("render: sample has no usable pixels")
)
