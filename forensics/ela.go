package forensics

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
)

// checkELA performs a simplified error-level analysis: downscale, recompress
// aggressively, and measure how far the recompressed pixels drift from the
// originals. Edited regions carry a different compression history and light
// up with large per-pixel errors.
func (a *Analyzer) checkELA(img image.Image, res *Result) float64 {
	b := img.Bounds()
	w := b.Dx()
	if w > a.cfg.ELAWidth {
		w = a.cfg.ELAWidth
	}
	if w <= 0 {
		return 0
	}
	scaled := imaging.Resize(img, w, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: a.cfg.ELAQuality}); err != nil {
		return 0
	}
	recompressed, err := jpeg.Decode(&buf)
	if err != nil {
		return 0
	}

	orig := toGray(scaled)
	comp := toGray(recompressed)
	n := len(orig.Pix)
	if len(comp.Pix) < n {
		n = len(comp.Pix)
	}
	if n == 0 {
		return 0
	}

	var errSum, highError int
	for i := 0; i < n; i++ {
		d := int(orig.Pix[i]) - int(comp.Pix[i])
		if d < 0 {
			d = -d
		}
		errSum += d
		if d > a.cfg.ELAPixelThreshold {
			highError++
		}
	}

	meanError := float64(errSum) / float64(n)
	highShare := float64(highError) / float64(n)
	res.Details.ELAMeanError = round2(meanError)
	res.Details.ELAHighErrorPct = round2(highShare * 100)

	if highShare > a.cfg.ELAHighErrorShare {
		res.Reasons = append(res.Reasons, reasonf("recompression inconsistencies (ELA: %.1f%% suspect area)", highShare*100))
		return a.cfg.ELAPenalty
	}
	return 0
}
