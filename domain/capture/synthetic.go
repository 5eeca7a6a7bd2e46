package capture

import (
	"image"
	"sync"
)

// SyntheticGrabber renders a horizontal gradient with a bright bar that moves
// a few pixels per frame. It stands in for the screen on headless hosts and
// makes interpolation visible in the preview.
type SyntheticGrabber struct {
	mu    sync.Mutex
	img   *image.RGBA
	frame int
	step  int
}

// NewSyntheticGrabber returns a width x height source moving step pixels
// per frame.
func NewSyntheticGrabber(width, height, step int) *SyntheticGrabber {
	if step <= 0 {
		step = 4
	}
	return &SyntheticGrabber{img: image.NewRGBA(image.Rect(0, 0, width, height)), step: step}
}

func (g *SyntheticGrabber) Grab() (*image.RGBA, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, h := g.img.Rect.Dx(), g.img.Rect.Dy()
	barW := max(1, w/16)
	bar := (g.frame * g.step) % max(1, w)
	g.frame++
	for y := 0; y < h; y++ {
		row := g.img.Pix[y*g.img.Stride : y*g.img.Stride+w*4]
		for x := 0; x < w; x++ {
			v := byte(x * 255 / max(1, w-1))
			r, gr, b := v/2, byte(y*255/max(1, h-1))/2, 255-v
			if x >= bar && x < bar+barW {
				r, gr, b = 255, 255, 255
			}
			i := x * 4
			row[i], row[i+1], row[i+2], row[i+3] = r, gr, b, 255
		}
	}
	return g.img, nil
}
