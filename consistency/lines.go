package consistency

import (
	"math"
	"sort"

	"github.com/lempira/comprobante/ocr"
)

// groupLines clusters words into text lines by vertical proximity. The
// tolerance is a fraction of the mean word height: words whose top edge sits
// within it of the line's anchor join that line. Words inside a line are
// ordered left to right.
func groupLines(words []ocr.Word, tolerance float64) [][]ocr.Word {
	if len(words) == 0 {
		return nil
	}

	heights := make([]float64, 0, len(words))
	for _, w := range words {
		if h := w.Box.Height(); h > 0 {
			heights = append(heights, float64(h))
		}
	}
	meanHeight := 15.0
	if len(heights) > 0 {
		meanHeight, _ = meanStdDev(heights)
	}
	tol := meanHeight * tolerance

	sorted := make([]ocr.Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Box.Y0 < sorted[j].Box.Y0 })

	var lines [][]ocr.Word
	current := []ocr.Word{sorted[0]}
	anchor := float64(sorted[0].Box.Y0)
	for _, w := range sorted[1:] {
		if math.Abs(float64(w.Box.Y0)-anchor) <= tol {
			current = append(current, w)
			continue
		}
		lines = append(lines, current)
		current = []ocr.Word{w}
		anchor = float64(w.Box.Y0)
	}
	lines = append(lines, current)

	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].Box.X0 < line[j].Box.X0 })
	}
	return lines
}

// wordHeights collects box heights above the noise floor of 2px.
func wordHeights(words []ocr.Word) []float64 {
	hs := make([]float64, 0, len(words))
	for _, w := range words {
		if h := w.Box.Height(); h > 2 {
			hs = append(hs, float64(h))
		}
	}
	return hs
}

func meanStdDev(vs []float64) (float64, float64) {
	if len(vs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	mean := sum / float64(len(vs))
	var varSum float64
	for _, v := range vs {
		d := v - mean
		varSum += d * d
	}
	return mean, math.Sqrt(varSum / float64(len(vs)))
}

func median(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	s := make([]float64, len(vs))
	copy(s, vs)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
