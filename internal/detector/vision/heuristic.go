package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"sort"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

const (
	// endTolerance is how far apart, in pixels, the ends of a top and a
	// bottom border may be.
	endTolerance = 3
	// sideCoverage is the share of rows that must show a vertical edge at
	// both sides of a candidate box.
	sideCoverage = 0.6
	// nmsDistance collapses boxes whose centers are this close.
	nmsDistance = 10
)

// Heuristic finds bordered, horizontally elongated rectangles by scanning
// the screenshot's edge maps. It needs no network access.
type Heuristic struct {
	minW, maxW, minH, maxH int
	threshold              int
}

// NewHeuristic builds the heuristic model from the vision config.
func NewHeuristic(cfg config.VisionConfig) *Heuristic {
	h := &Heuristic{
		minW: cfg.MinFieldWidth, maxW: cfg.MaxFieldWidth,
		minH: cfg.MinFieldHeight, maxH: cfg.MaxFieldHeight,
		threshold: cfg.EdgeThreshold,
	}
	if h.minW <= 0 {
		h.minW = 60
	}
	if h.maxW < h.minW {
		h.maxW = 900
	}
	if h.minH <= 0 {
		h.minH = 18
	}
	if h.maxH < h.minH {
		h.maxH = 70
	}
	if h.threshold <= 0 {
		h.threshold = 40
	}
	return h
}

func (h *Heuristic) Name() string { return config.ProviderHeuristic }

// DetectRegions decodes the PNG and returns the detected input boxes
// ordered top to bottom, left to right.
func (h *Heuristic) DetectRegions(ctx context.Context, data []byte) ([]Region, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vision: failed to decode screenshot: %w", err)
	}
	g := newGrayImage(img)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes := h.findBoxes(ctx, g)
	regions := make([]Region, 0, len(boxes))
	for _, b := range boxes {
		regions = append(regions, Region{Bounds: b, Category: schemas.CategoryUnknown})
	}
	return regions, ctx.Err()
}

// grayImage is a luminance copy of the screenshot.
type grayImage struct {
	w, h int
	pix  []uint8
}

func newGrayImage(img image.Image) *grayImage {
	b := img.Bounds()
	g := &grayImage{w: b.Dx(), h: b.Dy(), pix: make([]uint8, b.Dx()*b.Dy())}
	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < g.h; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < g.w; x++ {
				g.pix[y*g.w+x] = luminance(uint32(row[4*x]), uint32(row[4*x+1]), uint32(row[4*x+2]))
			}
		}
	case *image.RGBA:
		for y := 0; y < g.h; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < g.w; x++ {
				g.pix[y*g.w+x] = luminance(uint32(row[4*x]), uint32(row[4*x+1]), uint32(row[4*x+2]))
			}
		}
	default:
		for y := 0; y < g.h; y++ {
			for x := 0; x < g.w; x++ {
				r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				g.pix[y*g.w+x] = luminance(r>>8, gg>>8, bb>>8)
			}
		}
	}
	return g
}

func luminance(r, g, b uint32) uint8 {
	return uint8((299*r + 587*g + 114*b) / 1000)
}

func (g *grayImage) at(x, y int) int { return int(g.pix[y*g.w+x]) }

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// hEdge reports a luminance step between rows y and y+1 at column x.
func (h *Heuristic) hEdge(g *grayImage, x, y int) bool {
	return absInt(g.at(x, y)-g.at(x, y+1)) > h.threshold
}

// vEdge reports a luminance step between columns x and x+1 at row y.
func (h *Heuristic) vEdge(g *grayImage, x, y int) bool {
	if x < 0 || x+1 >= g.w {
		return false
	}
	return absInt(g.at(x, y)-g.at(x+1, y)) > h.threshold
}

// segment is a horizontal edge run on row y covering [x0, x1].
type segment struct {
	y, x0, x1 int
}

func (h *Heuristic) segments(g *grayImage) [][]segment {
	rows := make([][]segment, g.h)
	for y := 0; y+1 < g.h; y++ {
		start := -1
		for x := 0; x <= g.w; x++ {
			on := x < g.w && h.hEdge(g, x, y)
			if on && start < 0 {
				start = x
			}
			if !on && start >= 0 {
				if n := x - start; n >= h.minW && n <= h.maxW {
					rows[y] = append(rows[y], segment{y: y, x0: start, x1: x - 1})
				}
				start = -1
			}
		}
	}
	return rows
}

func (h *Heuristic) findBoxes(ctx context.Context, g *grayImage) []schemas.Rect {
	rows := h.segments(g)
	var boxes []schemas.Rect

	for y := range rows {
		if y%256 == 0 && ctx.Err() != nil {
			return nil
		}
		for _, top := range rows[y] {
			if box, ok := h.matchBottom(g, rows, top); ok {
				boxes = append(boxes, box)
			}
		}
	}
	return suppress(boxes)
}

// matchBottom pairs a top border with the nearest compatible bottom border
// whose sides are confirmed by vertical edges.
func (h *Heuristic) matchBottom(g *grayImage, rows [][]segment, top segment) (schemas.Rect, bool) {
	for y := top.y + h.minH; y <= top.y+h.maxH && y < len(rows); y++ {
		for _, bottom := range rows[y] {
			if absInt(bottom.x0-top.x0) > endTolerance || absInt(bottom.x1-top.x1) > endTolerance {
				continue
			}
			height := bottom.y - top.y
			width := top.x1 - top.x0 + 1
			if width <= 2*height {
				continue
			}
			if !h.sidesPresent(g, top, bottom) {
				continue
			}
			return schemas.Rect{
				X:      float64(top.x0),
				Y:      float64(top.y + 1),
				Width:  float64(width),
				Height: float64(height),
			}, true
		}
	}
	return schemas.Rect{}, false
}

func (h *Heuristic) sidesPresent(g *grayImage, top, bottom segment) bool {
	left, right, total := 0, 0, 0
	for y := top.y + 1; y <= bottom.y; y++ {
		total++
		if h.edgeNear(g, top.x0-2, top.x0+1, y) {
			left++
		}
		if h.edgeNear(g, top.x1-1, top.x1+1, y) {
			right++
		}
	}
	if total == 0 {
		return false
	}
	need := sideCoverage * float64(total)
	return float64(left) >= need && float64(right) >= need
}

func (h *Heuristic) edgeNear(g *grayImage, from, to, y int) bool {
	for x := from; x <= to; x++ {
		if h.vEdge(g, x, y) {
			return true
		}
	}
	return false
}

// suppress keeps the largest box of every cluster whose centers lie within
// nmsDistance, then orders the survivors by position.
func suppress(boxes []schemas.Rect) []schemas.Rect {
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Width*boxes[i].Height > boxes[j].Width*boxes[j].Height
	})
	var kept []schemas.Rect
	for _, b := range boxes {
		dup := false
		for _, k := range kept {
			if b.Distance(k) <= nmsDistance {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, b)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Y != kept[j].Y {
			return kept[i].Y < kept[j].Y
		}
		return kept[i].X < kept[j].X
	})
	return kept
}
