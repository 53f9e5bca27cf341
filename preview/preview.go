// Package preview renders the depth visualization of the displacement
// shader on the CPU, for headless hosts and tests.
package preview

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/HugoSmits86/nativewebp"

	"github.com/gogpu/depthmesh"
	"github.com/gogpu/depthmesh/internal/grid"
)

// Visualize maps a depth sample to [0, 1] the way the fragment shader does:
// linear between minDepth and maxDepth, then bent by a log curve of
// strength logNorm when logNorm > 0.
func Visualize(d, minDepth, maxDepth, logNorm float32) float32 {
	span := max(maxDepth-minDepth, 1e-6)
	v := (d - minDepth) / span
	if v != v || v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	if logNorm <= 0 {
		return v
	}
	f := float64(logNorm)
	return float32(math.Log2(1+float64(v)*(math.Exp2(f)-1)) / f)
}

// Render draws a width×height grey image of depth using the extents, log
// normalization and coordinate remap in u.
func Render(depth []float32, width, height int, u depthmesh.ShaderUniforms) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("preview: invalid size %dx%d", width, height)
	}
	if err := grid.CheckDepth(depth, width, height); err != nil {
		return nil, err
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range width * height {
		d := depth[grid.SampleIndex(i, width, height, u.SwapChannels)]
		v := Visualize(d, u.MinDepth, u.MaxDepth, u.LogNormalization)
		img.Pix[(i/width)*img.Stride+i%width] = uint8(v*255 + 0.5)
	}
	return img, nil
}

// EncodeWebP writes img as a lossless WebP.
func EncodeWebP(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("preview: webp encode: %w", err)
	}
	return nil
}
