package omr

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"

	apperrors "go-omr-scanner/internal/errors"
)

// Preprocessed is the immutable output of the preprocessing stage. Gray is
// the enhanced grayscale image used for intensity scoring; Mask is the
// binary ink mask (255 = ink) used for shape detection. Both are owned by
// the pipeline invocation that created them.
type Preprocessed struct {
	Gray   *image.Gray
	Mask   *image.Gray
	Width  int
	Height int
}

type preprocessor struct {
	opts AnalysisOptions
}

func newPreprocessor(opts AnalysisOptions) *preprocessor {
	return &preprocessor{opts: opts}
}

// Process turns a raw decoded image into a denoised, lighting-normalized
// grayscale plus an adaptive binary mask. Fails only on an empty buffer.
func (p *preprocessor) Process(img image.Image) (*Preprocessed, error) {
	if img == nil {
		return nil, apperrors.NewImageLoadError("nil image buffer", nil)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, apperrors.NewImageLoadError("image has zero dimensions", nil)
	}

	gray := toGray(img)

	// Edge-preserving-ish denoise: a small Gaussian is enough at bubble
	// scale and keeps graded pencil fills intact.
	if p.opts.SmoothingRadius > 0 {
		gray = toGray(blur.Gaussian(gray, p.opts.SmoothingRadius))
	}

	gray = normalizeIllumination(gray, p.opts.TileSize)

	mask := adaptiveBinarize(gray, p.opts.ThresholdWindow, p.opts.ThresholdBias)

	// Morphological closing then opening with a 3x3 element: closing fills
	// pinholes inside marks, opening removes speckle.
	mask = toGray(effect.Erode(effect.Dilate(mask, 1), 1))
	mask = toGray(effect.Dilate(effect.Erode(mask, 1), 1))

	return &Preprocessed{
		Gray:   gray,
		Mask:   mask,
		Width:  width,
		Height: height,
	}, nil
}

// toGray copies any image into a (0,0)-anchored grayscale buffer.
func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// normalizeIllumination flattens uneven lighting by dividing each pixel by a
// background-brightness estimate interpolated from per-tile histograms. The
// background of a tile is its 80th-percentile intensity, which on an answer
// sheet tracks the paper rather than the marks. Dividing (instead of
// equalizing) preserves the graded fill levels the intensity scorer needs.
func normalizeIllumination(gray *image.Gray, tile int) *image.Gray {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if tile <= 0 || width == 0 || height == 0 {
		return gray
	}

	tilesX := (width + tile - 1) / tile
	tilesY := (height + tile - 1) / tile
	background := make([]float64, tilesX*tilesY)

	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			var hist [256]int
			count := 0
			for y := ty * tile; y < (ty+1)*tile && y < height; y++ {
				for x := tx * tile; x < (tx+1)*tile && x < width; x++ {
					hist[gray.GrayAt(x, y).Y]++
					count++
				}
			}
			target := (count * 4) / 5 // 80th percentile
			cum := 0
			level := 255
			for v := 0; v < 256; v++ {
				cum += hist[v]
				if cum >= target {
					level = v
					break
				}
			}
			background[ty*tilesX+tx] = float64(level)
		}
	}

	out := image.NewGray(image.Rect(0, 0, width, height))
	half := float64(tile) / 2
	for y := 0; y < height; y++ {
		gy := (float64(y) - half) / float64(tile)
		y0 := clampInt(int(gy), 0, tilesY-1)
		y1 := clampInt(y0+1, 0, tilesY-1)
		fy := gy - float64(y0)
		if fy < 0 {
			fy = 0
		}
		for x := 0; x < width; x++ {
			gx := (float64(x) - half) / float64(tile)
			x0 := clampInt(int(gx), 0, tilesX-1)
			x1 := clampInt(x0+1, 0, tilesX-1)
			fx := gx - float64(x0)
			if fx < 0 {
				fx = 0
			}

			top := background[y0*tilesX+x0]*(1-fx) + background[y0*tilesX+x1]*fx
			bot := background[y1*tilesX+x0]*(1-fx) + background[y1*tilesX+x1]*fx
			bg := top*(1-fy) + bot*fy

			v := float64(gray.GrayAt(x, y).Y)
			if bg >= 1 {
				v = v * 245.0 / bg
			}
			if v > 255 {
				v = 255
			}
			out.SetGray(x, y, grayColor(uint8(v)))
		}
	}
	return out
}

// adaptiveBinarize marks a pixel as ink when it is darker than its local
// neighborhood mean minus a bias constant. The neighborhood mean is computed
// with a summed-area table so the window size does not affect cost.
func adaptiveBinarize(gray *image.Gray, window, bias int) *image.Gray {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if window < 3 {
		window = 3
	}
	r := window / 2

	// integral[(y+1)*(width+1)+(x+1)] holds the sum over [0..x] x [0..y].
	integral := make([]int64, (width+1)*(height+1))
	for y := 0; y < height; y++ {
		var rowSum int64
		for x := 0; x < width; x++ {
			rowSum += int64(gray.GrayAt(x, y).Y)
			integral[(y+1)*(width+1)+(x+1)] = integral[y*(width+1)+(x+1)] + rowSum
		}
	}

	mask := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		y0 := clampInt(y-r, 0, height-1)
		y1 := clampInt(y+r, 0, height-1)
		for x := 0; x < width; x++ {
			x0 := clampInt(x-r, 0, width-1)
			x1 := clampInt(x+r, 0, width-1)

			sum := integral[(y1+1)*(width+1)+(x1+1)] -
				integral[y0*(width+1)+(x1+1)] -
				integral[(y1+1)*(width+1)+x0] +
				integral[y0*(width+1)+x0]
			count := int64((y1 - y0 + 1) * (x1 - x0 + 1))
			mean := int(sum / count)

			if int(gray.GrayAt(x, y).Y) < mean-bias {
				mask.SetGray(x, y, grayColor(255))
			}
		}
	}
	return mask
}

func grayColor(v uint8) color.Gray {
	return color.Gray{Y: v}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
