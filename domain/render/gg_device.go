package render

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gg"
)

var errDisplayClosed = errors.New("render: display not open")

// GGDevice is the software render device built on gogpu/gg. The surface is an
// RGBA front buffer, the off-screen target is a gg.Context drawing into a
// Pixmap and textures are RGBA8 image buffers.
type GGDevice struct {
	open     bool
	hasCtx   bool
	current  bool
	program  bool
	lost     atomic.Bool
	front    *image.RGBA
	pm       *gg.Pixmap
	dc       *gg.Context
	interp   gg.InterpolationMode
	textures map[TextureID]*gg.ImageBuf
	next     TextureID

	sinkMu sync.Mutex
	sink   func(image.Image)
}

// NewGGDevice returns a closed device; GraphicsContext.Init opens it.
func NewGGDevice() *GGDevice {
	return &GGDevice{textures: make(map[TextureID]*gg.ImageBuf)}
}

func (d *GGDevice) Open() error {
	d.open = true
	return nil
}

func (d *GGDevice) CreateSurface(width, height int) error {
	if !d.open {
		return errDisplayClosed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("render: invalid surface size %dx%d", width, height)
	}
	d.front = image.NewRGBA(image.Rect(0, 0, width, height))
	d.lost.Store(false)
	return nil
}

func (d *GGDevice) CreateContext() error {
	if d.front == nil {
		return errors.New("render: no surface")
	}
	d.hasCtx = true
	return nil
}

func (d *GGDevice) BuildProgram() error {
	if !d.hasCtx {
		return ErrContextLost
	}
	d.interp = gg.InterpBilinear
	d.program = true
	return nil
}

func (d *GGDevice) CreateTarget(width, height int) error {
	if !d.program {
		return errors.New("render: no blend program")
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("render: invalid target size %dx%d", width, height)
	}
	d.DestroyTarget()
	d.pm = gg.NewPixmap(width, height)
	d.dc = gg.NewContext(width, height, gg.WithPixmap(d.pm))
	d.dc.ClearWithColor(gg.Black)
	return nil
}

func (d *GGDevice) DestroyTarget() {
	if d.dc != nil {
		_ = d.dc.Close()
	}
	d.dc, d.pm = nil, nil
}

func (d *GGDevice) MakeCurrent() error {
	if !d.hasCtx || d.lost.Load() {
		return ErrContextLost
	}
	d.current = true
	return nil
}

func (d *GGDevice) SurfaceAlive() bool {
	return d.open && d.front != nil && !d.lost.Load()
}

// Invalidate simulates the window system revoking the surface. Safe to call
// from any goroutine.
func (d *GGDevice) Invalidate() { d.lost.Store(true) }

func (d *GGDevice) CreateTexture(width, height int) (TextureID, error) {
	if !d.hasCtx {
		return 0, ErrContextLost
	}
	buf, err := gg.NewImageBuf(width, height, gg.FormatRGBA8)
	if err != nil {
		return 0, fmt.Errorf("render: create texture: %w", err)
	}
	d.next++
	d.textures[d.next] = buf
	return d.next, nil
}

func (d *GGDevice) WriteTexture(id TextureID, pix []byte) error {
	buf, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoTexture, id)
	}
	w, h := buf.Bounds()
	row := w * 4
	if len(pix) < row*h {
		return fmt.Errorf("render: texture %d wants %d bytes, got %d", id, row*h, len(pix))
	}
	if buf.Stride() == row {
		copy(buf.Data(), pix[:row*h])
	} else {
		for y := 0; y < h; y++ {
			copy(buf.RowBytes(y), pix[y*row:(y+1)*row])
		}
	}
	buf.InvalidatePremulCache()
	return nil
}

func (d *GGDevice) IsTexture(id TextureID) bool {
	_, ok := d.textures[id]
	return ok
}

func (d *GGDevice) DeleteTexture(id TextureID) { delete(d.textures, id) }

// Blend clears the target, draws prev opaque and latest on top with opacity
// factor. For opaque frames that is prev*(1-f) + latest*f.
func (d *GGDevice) Blend(prev, latest TextureID, factor float64) error {
	if !d.current || d.dc == nil || d.lost.Load() {
		return ErrContextLost
	}
	a, ok := d.textures[prev]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoTexture, prev)
	}
	b, ok := d.textures[latest]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoTexture, latest)
	}
	factor = min(max(factor, 0), 1)
	opts := gg.DrawImageOptions{
		DstWidth:      float64(d.pm.Width()),
		DstHeight:     float64(d.pm.Height()),
		Interpolation: d.interp,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	}
	d.dc.ClearWithColor(gg.Black)
	d.dc.DrawImageEx(a, opts)
	// gg treats opacity 0 as "unset", so a zero factor skips the second draw.
	if factor > 0 {
		opts.Opacity = factor
		d.dc.DrawImageEx(b, opts)
	}
	return nil
}

func (d *GGDevice) Swap() error {
	if d.lost.Load() || d.front == nil || d.pm == nil {
		return ErrContextLost
	}
	w, h := d.pm.Width(), d.pm.Height()
	if b := d.front.Bounds(); b.Dx() != w || b.Dy() != h {
		d.front = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	copy(d.front.Pix, d.pm.Data())
	d.sinkMu.Lock()
	sink := d.sink
	d.sinkMu.Unlock()
	if sink != nil {
		sink(d.front)
	}
	return nil
}

func (d *GGDevice) Release() {
	d.DestroyTarget()
	clear(d.textures)
	d.front = nil
	d.open, d.hasCtx, d.current, d.program = false, false, false, false
	d.lost.Store(false)
}

// SetPresentSink registers fn to receive every presented frame.
func (d *GGDevice) SetPresentSink(fn func(image.Image)) {
	d.sinkMu.Lock()
	d.sink = fn
	d.sinkMu.Unlock()
}

var (
	_ Device          = (*GGDevice)(nil)
	_ PresentNotifier = (*GGDevice)(nil)
)
