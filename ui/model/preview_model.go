package model

import (
	"image"
	"sync"
	"time"
)

// PreviewModel keeps a private copy of the most recently presented frame.
// Offer is called from the render owner with an image that is only valid
// during the call, so it copies at most once per interval. Take hands the
// frame to the UI tick.
type PreviewModel struct {
	interval time.Duration

	mu      sync.Mutex
	frame   *image.RGBA
	spare   *image.RGBA
	last    time.Time
	fresh   bool
	offered uint64
	copied  uint64
}

// NewPreviewModel returns a model copying at most one frame per interval.
func NewPreviewModel(interval time.Duration) *PreviewModel {
	return &PreviewModel{interval: interval}
}

// Offer copies img when the throttle interval elapsed since the last copy.
// It reports whether the frame was kept.
func (m *PreviewModel) Offer(img image.Image, now time.Time) bool {
	if m == nil || img == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offered++
	if !m.last.IsZero() && now.Sub(m.last) < m.interval {
		return false
	}
	b := img.Bounds()
	dst := m.spare
	if dst == nil || dst.Rect.Dx() != b.Dx() || dst.Rect.Dy() != b.Dy() {
		dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	m.spare = nil
	copyInto(dst, img)
	if m.frame != nil {
		m.spare = m.frame
	}
	m.frame = dst
	m.last = now
	m.fresh = true
	m.copied++
	return true
}

// Take returns the newest frame if one arrived since the previous Take. The
// image stays valid until the next Take.
func (m *PreviewModel) Take() (*image.RGBA, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fresh {
		return nil, false
	}
	m.fresh = false
	out := m.frame
	// The caller owns out until the next Take; never recycle it as spare.
	m.frame, m.spare = nil, nil
	return out, true
}

// Reset drops any held frame.
func (m *PreviewModel) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.frame, m.spare, m.fresh = nil, nil, false
	m.last = time.Time{}
	m.mu.Unlock()
}

// Counts reports offered and copied frames.
func (m *PreviewModel) Counts() (offered, copied uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offered, m.copied
}

func copyInto(dst *image.RGBA, src image.Image) {
	if s, ok := src.(*image.RGBA); ok {
		b := s.Bounds()
		row := b.Dx() * 4
		for y := 0; y < b.Dy(); y++ {
			so := s.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+row], s.Pix[so:so+row])
		}
		return
	}
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, y-b.Min.Y, src.At(x, y))
		}
	}
}
