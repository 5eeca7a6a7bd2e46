package render

import (
	"fmt"

	"github.com/soocke/frameboost-go/domain/frame"
)

// Compositor renders blended frames from queued samples. Its methods touch
// the device and must run on the Owner.
type Compositor struct {
	gctx     *GraphicsContext
	uploader *Uploader
}

func NewCompositor(gctx *GraphicsContext, uploader *Uploader) *Compositor {
	return &Compositor{gctx: gctx, uploader: uploader}
}

func (c *Compositor) MakeCurrent() bool { return c.gctx.MakeCurrent() }

// Blend resolves both samples to textures, uploading on a cache miss, and
// draws mix(prev, latest, factor) into the target.
func (c *Compositor) Blend(prev, latest frame.Sample, factor float64) error {
	a, err := c.uploader.UploadNow(prev)
	if err != nil {
		return fmt.Errorf("texture for frame %d: %w", prev.Seq, err)
	}
	b, err := c.uploader.UploadNow(latest)
	if err != nil {
		return fmt.Errorf("texture for frame %d: %w", latest.Seq, err)
	}
	return c.gctx.Blend(a, b, factor)
}

func (c *Compositor) Present() bool { return c.gctx.Present() }
