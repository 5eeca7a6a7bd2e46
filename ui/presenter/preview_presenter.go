package presenter

import "image"

// FrameTaker yields the newest presented frame, if any.
type FrameTaker interface {
	Take() (*image.RGBA, bool)
}

// PreviewView shows a presented frame.
type PreviewView interface {
	UpdatePreview(img image.Image)
}

// PreviewPresenter moves frames from the preview model to the view on the UI
// tick, keeping Tk calls off the render owner.
type PreviewPresenter struct {
	frames FrameTaker
	view   PreviewView
	shown  uint64
}

func NewPreviewPresenter(frames FrameTaker, view PreviewView) *PreviewPresenter {
	return &PreviewPresenter{frames: frames, view: view}
}

func (p *PreviewPresenter) Tick() {
	if p == nil || p.frames == nil || p.view == nil {
		return
	}
	img, ok := p.frames.Take()
	if !ok {
		return
	}
	p.view.UpdatePreview(img)
	p.shown++
}

// Shown counts frames handed to the view.
func (p *PreviewPresenter) Shown() uint64 {
	if p == nil {
		return 0
	}
	return p.shown
}
