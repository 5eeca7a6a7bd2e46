package capture

import (
	"image"

	"github.com/vova616/screenshot"
)

// ScreenGrabber captures the primary screen, or a sub-rectangle of it when
// Selection returns a non-empty rectangle.
type ScreenGrabber struct {
	Selection func() *image.Rectangle
}

func (g *ScreenGrabber) Grab() (*image.RGBA, error) {
	if g.Selection != nil {
		if r := g.Selection(); r != nil && !r.Empty() {
			return screenshot.CaptureRect(*r)
		}
	}
	return screenshot.CaptureScreen()
}

// ScreenBounds returns the primary screen rectangle.
func ScreenBounds() (image.Rectangle, error) {
	return screenshot.ScreenRect()
}
