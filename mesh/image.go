package mesh

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"vizgpu/driver"
	"vizgpu/gpu"
)

// SurfaceFromImage converts img to an RGBA8 surface. Rows are flipped so
// the top of the image is the top of the surface.
func SurfaceFromImage(img image.Image, filter driver.TextureFilter) *gpu.Surface {
	b := img.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	driver.FlipImageY(rgba.Stride, b.Dy(), rgba.Pix)
	return gpu.NewSurface(b.Dx(), b.Dy(), rgba.Pix, filter)
}

// FieldFromImage scales img to width×height and returns its luminance in
// [0, 1], one value per texel with row 0 at the bottom.
func FieldFromImage(img image.Image, width, height int) []float32 {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	out := make([]float32, width*height)
	for y := range height {
		row := gray.Pix[(height-1-y)*gray.Stride:]
		for x := range width {
			out[y*width+x] = float32(row[x]) / 255
		}
	}
	return out
}

// DecodeImage reads a PNG or JPEG file.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}
	return img, nil
}
