package forensics

import (
	"image"

	"github.com/disintegration/imaging"
)

// checkCutLines looks for long straight gradient walls. A column or row where
// most perpendicular pixels jump by more than the gradient threshold is a cut
// line, the footprint of a rectangle pasted over the photograph. The outer
// border is excluded because the image frame itself produces hard edges.
func (a *Analyzer) checkCutLines(img image.Image, res *Result) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > a.cfg.CutLineMaxSize {
		w = a.cfg.CutLineMaxSize
	}
	if h > a.cfg.CutLineMaxSize {
		h = a.cfg.CutLineMaxSize
	}
	if w < 2 || h < 2 {
		return 0
	}
	// Exact-fit resize (aspect distortion is fine, lines stay lines).
	gray := toGray(imaging.Resize(img, w, h, imaging.NearestNeighbor))

	threshold := a.cfg.CutLineGradient
	perColumn := make([]int, w)
	perRow := make([]int, h)
	var strongEdges int

	for y := 0; y < h; y++ {
		row := y * gray.Stride
		for x := 1; x < w; x++ {
			d := int(gray.Pix[row+x]) - int(gray.Pix[row+x-1])
			if d < 0 {
				d = -d
			}
			if d > threshold {
				perColumn[x]++
				strongEdges++
			}
		}
	}
	for y := 1; y < h; y++ {
		row := y * gray.Stride
		prev := (y - 1) * gray.Stride
		for x := 0; x < w; x++ {
			d := int(gray.Pix[row+x]) - int(gray.Pix[prev+x])
			if d < 0 {
				d = -d
			}
			if d > threshold {
				perRow[y]++
				strongEdges++
			}
		}
	}

	vertical := 0
	for x := int(float64(w) * a.cfg.CutLineBorder); x < int(float64(w)*(1-a.cfg.CutLineBorder)); x++ {
		if float64(perColumn[x]) > float64(h)*a.cfg.CutLineShare {
			vertical++
		}
	}
	horizontal := 0
	for y := int(float64(h) * a.cfg.CutLineBorder); y < int(float64(h)*(1-a.cfg.CutLineBorder)); y++ {
		if float64(perRow[y]) > float64(w)*a.cfg.CutLineShare {
			horizontal++
		}
	}

	res.Details.CutLinesVertical = vertical
	res.Details.CutLinesHorizontal = horizontal
	res.Details.StrongEdges = strongEdges

	total := vertical + horizontal
	switch {
	case total > a.cfg.CutLineManyCount:
		res.Reasons = append(res.Reasons, reasonf("%d cut lines detected (%dV, %dH), image likely spliced", total, vertical, horizontal))
		return a.cfg.CutLineManyPenalty
	case total > a.cfg.CutLineFewCount:
		res.Reasons = append(res.Reasons, reasonf("%d possible cut lines (%dV, %dH)", total, vertical, horizontal))
		return a.cfg.CutLineFewPenalty
	}
	return 0
}
