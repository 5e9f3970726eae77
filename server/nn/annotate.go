package nn

import (
	"fmt"
	"image"

	"github.com/bmharper/cimg/v2"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Box colors, cycled by class index
var annotatePalette = [][3]float64{
	{0.91, 0.30, 0.24},
	{0.18, 0.80, 0.44},
	{0.20, 0.60, 0.86},
	{0.95, 0.77, 0.06},
	{0.61, 0.35, 0.71},
	{0.90, 0.49, 0.13},
}

// Annotate draws detection boxes and "<class> <confidence>" labels onto a
// copy of img, and returns the result. The input image is not modified.
func Annotate(img *cimg.Image, detections []ObjectDetection, cfg *ModelConfig) image.Image {
	dc := gg.NewContextForImage(toGoImage(img))
	for _, det := range detections {
		color := annotatePalette[det.Class%len(annotatePalette)]
		label := fmt.Sprintf("%v %.2f", cfg.ClassName(det.Class), det.Confidence)

		dc.SetRGB(color[0], color[1], color[2])
		dc.SetLineWidth(2)
		dc.DrawRectangle(float64(det.Box.X), float64(det.Box.Y), float64(det.Box.Width), float64(det.Box.Height))
		dc.Stroke()

		tw, th := dc.MeasureString(label)
		ty := float64(det.Box.Y) - th - 4
		if ty < 0 {
			ty = float64(det.Box.Y)
		}
		dc.DrawRectangle(float64(det.Box.X), ty, tw+6, th+4)
		dc.Fill()
		dc.SetRGB(1, 1, 1)
		dc.DrawString(label, float64(det.Box.X)+3, ty+th)
	}
	return dc.Image()
}

// WriteAnnotatedJPEG annotates img and writes the result to filename.
func WriteAnnotatedJPEG(img *cimg.Image, detections []ObjectDetection, cfg *ModelConfig, filename string) error {
	return imaging.Save(Annotate(img, detections, cfg), filename, imaging.JPEGQuality(90))
}

// Convert a cimg image (tightly packed gray/RGB/RGBA) into an image.RGBA
func toGoImage(img *cimg.Image) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	nchan := img.NChan()
	stride := img.Width * nchan
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < img.Width; x++ {
			r := src[x*nchan]
			g := r
			b := r
			a := byte(255)
			if nchan >= 3 {
				g = src[x*nchan+1]
				b = src[x*nchan+2]
			}
			if nchan == 4 {
				a = src[x*nchan+3]
			}
			dst[x*4] = r
			dst[x*4+1] = g
			dst[x*4+2] = b
			dst[x*4+3] = a
		}
	}
	return out
}
