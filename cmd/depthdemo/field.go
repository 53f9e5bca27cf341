package main

import "math"

// synthesize fills dst with a width×height depth field: a slanted plane
// with a ripple travelling outward from the centre as frame advances.
func synthesize(dst []float32, width, height, frame int) {
	cx, cy := float64(width-1)/2, float64(height-1)/2
	phase := float64(frame) * 0.2
	for y := range height {
		for x := range width {
			dx, dy := float64(x)-cx, float64(y)-cy
			r := math.Hypot(dx, dy)
			d := 2 + float64(y)/float64(height) + 0.5*math.Sin(r*0.15-phase)
			dst[y*width+x] = float32(d)
		}
	}
}
