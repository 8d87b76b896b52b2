package forensics

import "image"

// checkBlockNoise splits the image into a grid and compares high-frequency
// noise between cells. A pasted region keeps the noise signature of its
// source image, so the coefficient of variation across cells spikes. Skipped
// when the cells would be too small to measure.
func (a *Analyzer) checkBlockNoise(gray *image.Gray, res *Result) float64 {
	grid := a.cfg.NoiseGrid
	w := gray.Bounds().Dx()
	h := gray.Bounds().Dy()
	cellW := w / grid
	cellH := h / grid
	if cellW < a.cfg.NoiseMinCell || cellH < a.cfg.NoiseMinCell {
		return 0
	}

	noise := make([]float64, 0, grid*grid)
	for row := 0; row < grid; row++ {
		for col := 0; col < grid; col++ {
			noise = append(noise, cellNoise(gray, col*cellW, row*cellH, cellW, cellH))
		}
	}

	mean, stddev := meanStdDev(noise)
	cv := 0.0
	if mean > 0 {
		cv = stddev / mean
	}

	rounded := make([]float64, len(noise))
	for i, v := range noise {
		rounded[i] = round2(v)
	}
	res.Details.NoisePerCell = rounded
	res.Details.NoiseMean = round2(mean)
	res.Details.NoiseCV = round3(cv)

	switch {
	case cv > a.cfg.NoiseHighCV:
		res.Reasons = append(res.Reasons, reasonf("inconsistent noise between regions (CV %.2f), possible splice", cv))
		return a.cfg.NoiseHighPenalty
	case cv > a.cfg.NoiseModerateCV:
		res.Reasons = append(res.Reasons, reasonf("moderate noise variation between regions (CV %.2f)", cv))
		return a.cfg.NoiseModeratePenalty
	}
	return 0
}

// cellNoise measures the mean absolute difference between horizontally
// adjacent pixels inside one grid cell.
func cellNoise(gray *image.Gray, x0, y0, w, h int) float64 {
	var sum, count int
	for y := y0; y < y0+h; y++ {
		rowStart := gray.PixOffset(gray.Bounds().Min.X+x0, gray.Bounds().Min.Y+y)
		for x := 1; x < w; x++ {
			d := int(gray.Pix[rowStart+x]) - int(gray.Pix[rowStart+x-1])
			if d < 0 {
				d = -d
			}
			sum += d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}
