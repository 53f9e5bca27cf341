package depthmesh

import (
	"image"

	"golang.org/x/image/draw"
)

// resampleColor scales src to one RGBA pixel per grid vertex.
func resampleColor(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if src == nil || src.Bounds().Empty() {
		return dst
	}
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
