package omr

import (
	"image"
)

// newWhiteGray creates a grayscale image filled with paper white.
func newWhiteGray(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// drawDisk paints a solid disk of the given gray level.
func drawDisk(img *image.Gray, cx, cy, r int, v uint8) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			x, y := cx+dx, cy+dy
			if image.Pt(x, y).In(img.Bounds()) {
				img.SetGray(x, y, grayColor(v))
			}
		}
	}
}
