package view

import (
	"image"

	"github.com/soocke/frameboost-go/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Preview shows the most recently presented (interpolated) frame.
type Preview interface {
	UpdatePreview(img image.Image)
	Reset()
}

const (
	maxPreviewW = 480
	maxPreviewH = 270
)

type preview struct {
	label *LabelWidget
	photo *Img // replaced photos are deleted so Tk does not keep their pixels
}

// NewPreview creates the preview label spanning the given grid row.
func NewPreview(row int) Preview {
	p := &preview{}
	p.photo = NewPhoto(Data(placeholderPNG()))
	p.label = Label(Image(p.photo), Borderwidth(1), Relief("sunken"))
	Grid(p.label, Row(row), Column(0), Columnspan(5), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	return p
}

func placeholderPNG() []byte {
	return images.EncodePNG(image.NewRGBA(image.Rect(0, 0, maxPreviewW, maxPreviewH)))
}

func (p *preview) UpdatePreview(img image.Image) {
	if p.label == nil || img == nil {
		return
	}
	p.replace(images.EncodePNG(images.ScaleToFit(img, maxPreviewW, maxPreviewH)))
}

func (p *preview) Reset() {
	if p.label == nil {
		return
	}
	p.replace(placeholderPNG())
}

func (p *preview) replace(pngBytes []byte) {
	if p.photo != nil {
		p.photo.Delete()
	}
	p.photo = NewPhoto(Data(pngBytes))
	p.label.Configure(Image(p.photo))
}
