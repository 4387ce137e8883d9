package omr

import (
	"image"
	"math"
)

// BubbleCandidate is a connected component that plausibly represents a
// bubble. Candidates are ephemeral: they exist only within one analysis
// pass and are discarded once the grid has been built.
type BubbleCandidate struct {
	X           int // bounding box left
	Y           int // bounding box top
	Width       int
	Height      int
	Area        int
	AspectRatio float64
	Circularity float64
}

// CenterX returns the x coordinate of the candidate's center.
func (c BubbleCandidate) CenterX() float64 {
	return float64(c.X) + float64(c.Width)/2
}

// CenterY returns the y coordinate of the candidate's center.
func (c BubbleCandidate) CenterY() float64 {
	return float64(c.Y) + float64(c.Height)/2
}

type candidateDetector struct {
	opts AnalysisOptions
}

func newCandidateDetector(opts AnalysisOptions) *candidateDetector {
	return &candidateDetector{opts: opts}
}

// Detect finds 4-connected components in the ink mask and keeps those whose
// size, aspect ratio, and circularity are bubble-like. An empty result is
// not an error; the pipeline surfaces it as a sheet-level failure.
func (d *candidateDetector) Detect(mask *image.Gray) []BubbleCandidate {
	bounds := mask.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	ink := func(x, y int) bool {
		return x >= 0 && x < width && y >= 0 && y < height && mask.GrayAt(x, y).Y > 0
	}

	visited := make([]bool, width*height)
	queue := make([]int, 0, 256)
	var candidates []BubbleCandidate

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			if visited[idx] || mask.GrayAt(x, y).Y == 0 {
				continue
			}

			// BFS over the component, tracking bounds, area, and the
			// number of boundary pixels (the contour length estimate).
			minX, minY, maxX, maxY := x, y, x, y
			area, perimeter := 0, 0

			visited[idx] = true
			queue = append(queue[:0], idx)
			for len(queue) > 0 {
				ci := queue[0]
				queue = queue[1:]
				cx, cy := ci%width, ci/width

				area++
				if cx < minX {
					minX = cx
				}
				if cy < minY {
					minY = cy
				}
				if cx > maxX {
					maxX = cx
				}
				if cy > maxY {
					maxY = cy
				}

				boundary := false
				for _, dir := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nx, ny := cx+dir[0], cy+dir[1]
					if !ink(nx, ny) {
						boundary = true
						continue
					}
					ni := ny*width + nx
					if !visited[ni] {
						visited[ni] = true
						queue = append(queue, ni)
					}
				}
				if boundary {
					perimeter++
				}
			}

			if c, ok := d.evaluate(minX, minY, maxX, maxY, area, perimeter); ok {
				candidates = append(candidates, c)
			}
		}
	}
	return candidates
}

// evaluate applies the bubble plausibility filters to one component.
func (d *candidateDetector) evaluate(minX, minY, maxX, maxY, area, perimeter int) (BubbleCandidate, bool) {
	if area < d.opts.MinBubbleArea || area > d.opts.MaxBubbleArea {
		return BubbleCandidate{}, false
	}

	w := maxX - minX + 1
	h := maxY - minY + 1
	aspect := float64(w) / float64(h)
	if aspect < 1-d.opts.AspectTolerance || aspect > 1+d.opts.AspectTolerance {
		return BubbleCandidate{}, false
	}

	circularity := 0.0
	if perimeter > 0 {
		circularity = 4 * math.Pi * float64(area) / (float64(perimeter) * float64(perimeter))
	}
	if circularity < d.opts.MinCircularity {
		return BubbleCandidate{}, false
	}

	return BubbleCandidate{
		X:           minX,
		Y:           minY,
		Width:       w,
		Height:      h,
		Area:        area,
		AspectRatio: aspect,
		Circularity: circularity,
	}, true
}
