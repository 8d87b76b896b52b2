package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// PreprocessConfig controls the cleanup applied before the first recognition
// pass. Defaults are tuned for phone photographs of bank receipts.
type PreprocessConfig struct {
	// MaxWidth caps the working width; larger images are downscaled,
	// smaller ones are never enlarged.
	MaxWidth int
	// SharpenSigma is the unsharp radius applied after contrast
	// normalization.
	SharpenSigma float64
	// BinarizeThreshold is the gray level above which a pixel becomes
	// white.
	BinarizeThreshold uint8
}

// DefaultPreprocessConfig returns the calibrated preprocessing parameters.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		MaxWidth:          2000,
		SharpenSigma:      1.5,
		BinarizeThreshold: 140,
	}
}

// Preprocess cleans an encoded image for recognition: bounded resize,
// grayscale, contrast stretch, sharpen, fixed-threshold binarization, PNG
// re-encode. It helps typical phone photos but can destroy faint text, which
// is why the extractor also runs the untouched original.
func Preprocess(data []byte, cfg PreprocessConfig) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.MaxWidth > 0 && img.Bounds().Dx() > cfg.MaxWidth {
		img = imaging.Resize(img, cfg.MaxWidth, 0, imaging.Lanczos)
	}

	gray := imaging.Grayscale(img)
	gray = stretchContrast(gray)
	if cfg.SharpenSigma > 0 {
		gray = imaging.Sharpen(gray, cfg.SharpenSigma)
	}

	threshold := cfg.BinarizeThreshold
	bin := imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		if c.R >= threshold {
			return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return color.NRGBA{A: 255}
	})

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, bin, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode preprocessed image: %w", err)
	}
	return buf.Bytes(), nil
}

// stretchContrast linearly maps the 1st..99th percentile gray levels onto the
// full range, ignoring outlier pixels the way a histogram normalize does.
// Input must already be grayscale (R == G == B).
func stretchContrast(img *image.NRGBA) *image.NRGBA {
	var hist [256]int
	total := 0
	for i := 0; i < len(img.Pix); i += 4 {
		hist[img.Pix[i]]++
		total++
	}
	if total == 0 {
		return img
	}

	cutoff := total / 100
	lo, hi := 0, 255
	for acc := 0; lo < 255; lo++ {
		acc += hist[lo]
		if acc > cutoff {
			break
		}
	}
	for acc := 0; hi > 0; hi-- {
		acc += hist[hi]
		if acc > cutoff {
			break
		}
	}
	if hi <= lo {
		return img
	}

	scale := 255.0 / float64(hi-lo)
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		s := (float64(v) - float64(lo)) * scale
		if s < 0 {
			s = 0
		}
		if s > 255 {
			s = 255
		}
		lut[v] = uint8(s + 0.5)
	}

	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	for i := 0; i < len(out.Pix); i += 4 {
		v := lut[out.Pix[i]]
		out.Pix[i] = v
		out.Pix[i+1] = v
		out.Pix[i+2] = v
	}
	return out
}
