package render

import "image"

// TextureID names a texture owned by a Device. Zero is never a valid id.
type TextureID uint32

// Device is the set of graphics entry points a GraphicsContext drives. Calls
// are serialized by the context lock, so implementations need no locking of
// their own for these methods.
//
// Init order is Open, CreateSurface, CreateContext, BuildProgram,
// CreateTarget. Release must tolerate a partially initialized device.
type Device interface {
	Open() error
	CreateSurface(width, height int) error
	CreateContext() error
	BuildProgram() error
	CreateTarget(width, height int) error
	DestroyTarget()
	MakeCurrent() error
	SurfaceAlive() bool

	CreateTexture(width, height int) (TextureID, error)
	WriteTexture(id TextureID, pix []byte) error
	IsTexture(id TextureID) bool
	DeleteTexture(id TextureID)

	// Blend draws mix(prev, latest, factor) into the off-screen target.
	Blend(prev, latest TextureID, factor float64) error
	// Swap publishes the target to the surface.
	Swap() error
	Release()
}

// PresentNotifier is implemented by devices that can hand presented frames to
// an observer. The image passed to the sink is only valid during the call.
type PresentNotifier interface {
	SetPresentSink(func(image.Image))
}
