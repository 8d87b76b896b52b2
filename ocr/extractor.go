package ocr

import (
	"context"
	"fmt"
	"strings"
)

// Extractor runs the engine twice per image, once on a preprocessed variant
// and once on the untouched original, and keeps whichever pass yields more
// text. Preprocessing usually wins on phone photos; the raw pass rescues
// receipts whose faint text the binarization destroys.
type Extractor struct {
	engine Engine
	cfg    PreprocessConfig
}

// NewExtractor builds an extractor around a recognition engine. Zero-valued
// config fields fall back to defaults.
func NewExtractor(engine Engine, cfg PreprocessConfig) *Extractor {
	def := DefaultPreprocessConfig()
	if cfg.MaxWidth == 0 {
		cfg.MaxWidth = def.MaxWidth
	}
	if cfg.SharpenSigma == 0 {
		cfg.SharpenSigma = def.SharpenSigma
	}
	if cfg.BinarizeThreshold == 0 {
		cfg.BinarizeThreshold = def.BinarizeThreshold
	}
	return &Extractor{engine: engine, cfg: cfg}
}

// Extract recognizes text in the image. It fails only when both passes fail;
// a preprocessing failure silently falls back to the original bytes.
func (e *Extractor) Extract(ctx context.Context, image []byte) (Result, error) {
	cleaned, prepErr := Preprocess(image, e.cfg)
	if prepErr != nil {
		cleaned = image
	}

	processed, err1 := e.engine.Recognize(ctx, cleaned)
	if err1 != nil && ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	raw, err2 := e.engine.Recognize(ctx, image)
	if err2 != nil && ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err1 != nil && err2 != nil {
		return Result{}, fmt.Errorf("recognize: %w", err2)
	}

	best := processed
	switch {
	case err1 != nil:
		best = raw
	case err2 != nil:
		best = processed
	case len(strings.TrimSpace(raw.Text)) > len(strings.TrimSpace(processed.Text)):
		best = raw
	}

	best.Text = strings.TrimSpace(best.Text)
	best.WordCount = CountWords(best.Text)
	return best, nil
}
