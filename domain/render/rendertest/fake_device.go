// Package rendertest provides a scriptable render.Device for tests.
package rendertest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/soocke/frameboost-go/domain/render"
)

// ErrInjected is the default error returned by a faulted call.
var ErrInjected = errors.New("rendertest: injected fault")

// Faults selects which device calls fail. Nil errors mean success.
type Faults struct {
	Open        error
	Surface     error
	Context     error
	Program     error
	Target      error
	MakeCurrent error
	Texture     error
	Blend       error
	Swap        error

	// OpenFailures fails the next n Open calls with ErrInjected, then clears.
	OpenFailures int
	// SurfaceDead makes SurfaceAlive report false.
	SurfaceDead bool
	// BlendGate holds every Blend until the channel is closed.
	BlendGate chan struct{}
}

// FakeDevice records calls and tracks live objects so tests can assert that
// teardown deleted everything. Unlike a real device, Release does not free
// textures implicitly; a context that forgets to delete them leaks.
type FakeDevice struct {
	mu       sync.Mutex
	faults   Faults
	open     bool
	surface  bool
	context  bool
	program  bool
	target   bool
	textures map[render.TextureID][]byte
	next     render.TextureID

	opens, releases, blends, swaps, targets int
	gated                                   int
	lastFactor                              float64
}

func New() *FakeDevice {
	return &FakeDevice{textures: make(map[render.TextureID][]byte)}
}

// Update edits the active faults under the device lock.
func (d *FakeDevice) Update(fn func(*Faults)) {
	d.mu.Lock()
	fn(&d.faults)
	d.mu.Unlock()
}

func (d *FakeDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.faults.OpenFailures > 0 {
		d.faults.OpenFailures--
		return ErrInjected
	}
	if d.faults.Open != nil {
		return d.faults.Open
	}
	d.open = true
	return nil
}

func (d *FakeDevice) CreateSurface(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults.Surface != nil {
		return d.faults.Surface
	}
	if !d.open {
		return errors.New("rendertest: display closed")
	}
	d.surface = true
	return nil
}

func (d *FakeDevice) CreateContext() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults.Context != nil {
		return d.faults.Context
	}
	d.context = true
	return nil
}

func (d *FakeDevice) BuildProgram() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults.Program != nil {
		return d.faults.Program
	}
	d.program = true
	return nil
}

func (d *FakeDevice) CreateTarget(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults.Target != nil {
		return d.faults.Target
	}
	d.target = true
	d.targets++
	return nil
}

func (d *FakeDevice) DestroyTarget() {
	d.mu.Lock()
	d.target = false
	d.mu.Unlock()
}

func (d *FakeDevice) MakeCurrent() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults.MakeCurrent != nil {
		return d.faults.MakeCurrent
	}
	if !d.context {
		return render.ErrContextLost
	}
	return nil
}

func (d *FakeDevice) SurfaceAlive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surface && !d.faults.SurfaceDead
}

func (d *FakeDevice) CreateTexture(width, height int) (render.TextureID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults.Texture != nil {
		return 0, d.faults.Texture
	}
	d.next++
	d.textures[d.next] = make([]byte, width*height*4)
	return d.next, nil
}

func (d *FakeDevice) WriteTexture(id render.TextureID, pix []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: %d", render.ErrNoTexture, id)
	}
	copy(buf, pix)
	return nil
}

func (d *FakeDevice) IsTexture(id render.TextureID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.textures[id]
	return ok
}

func (d *FakeDevice) DeleteTexture(id render.TextureID) {
	d.mu.Lock()
	delete(d.textures, id)
	d.mu.Unlock()
}

func (d *FakeDevice) Blend(prev, latest render.TextureID, factor float64) error {
	d.mu.Lock()
	gate := d.faults.BlendGate
	if gate != nil {
		d.gated++
	}
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults.Blend != nil {
		return d.faults.Blend
	}
	if _, ok := d.textures[prev]; !ok {
		return fmt.Errorf("%w: %d", render.ErrNoTexture, prev)
	}
	if _, ok := d.textures[latest]; !ok {
		return fmt.Errorf("%w: %d", render.ErrNoTexture, latest)
	}
	d.blends++
	d.lastFactor = factor
	return nil
}

func (d *FakeDevice) Swap() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults.Swap != nil {
		return d.faults.Swap
	}
	d.swaps++
	return nil
}

func (d *FakeDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releases++
	d.open, d.surface, d.context, d.program, d.target = false, false, false, false, false
}

// LiveTextures counts textures created and not yet deleted.
func (d *FakeDevice) LiveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures)
}

// IsOpen reports whether the display is currently open.
func (d *FakeDevice) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *FakeDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

func (d *FakeDevice) Releases() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releases
}

func (d *FakeDevice) Blends() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blends
}

func (d *FakeDevice) Swaps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.swaps
}

// Gated counts Blend calls that waited on BlendGate.
func (d *FakeDevice) Gated() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gated
}

// Targets counts CreateTarget successes.
func (d *FakeDevice) Targets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targets
}

func (d *FakeDevice) LastFactor() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastFactor
}

var _ render.Device = (*FakeDevice)(nil)
