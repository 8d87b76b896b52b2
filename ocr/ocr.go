// Package ocr defines the text-recognition contract used by the verification
// pipeline and the double-pass extractor that drives it. Engines return full
// text plus word-level boxes and confidences; downstream analyzers consume
// the word geometry to detect composited text.
package ocr

import (
	"context"
	"strings"
)

// Box is a word bounding box in pixel coordinates with the origin in the
// upper-left corner of the image.
type Box struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Valid reports whether the box has positive area.
func (b Box) Valid() bool { return b.X1 > b.X0 && b.Y1 > b.Y0 }

// Width returns the horizontal extent.
func (b Box) Width() int { return b.X1 - b.X0 }

// Height returns the vertical extent.
func (b Box) Height() int { return b.Y1 - b.Y0 }

// CenterX returns the horizontal center.
func (b Box) CenterX() float64 { return float64(b.X0+b.X1) / 2 }

// CenterY returns the vertical center.
func (b Box) CenterY() float64 { return float64(b.Y0+b.Y1) / 2 }

// Word is a single recognized token. Confidence uses the engine's 0-100
// scale; Box may be zero when the engine cannot attribute geometry.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Result captures recognition output for one image.
type Result struct {
	// Text is the full extracted text, trimmed.
	Text string `json:"text"`
	// Confidence is the overall recognition confidence normalized to [0,1].
	Confidence float64 `json:"confidence"`
	// WordCount counts whitespace-separated tokens in Text.
	WordCount int `json:"word_count"`
	// Words carries word-level detail in reading order. May be empty.
	Words []Word `json:"words,omitempty"`
}

// CountWords returns the number of whitespace-separated tokens in s.
func CountWords(s string) int { return len(strings.Fields(s)) }

// Engine is the recognition provider contract: one encoded image in, one
// result out. Implementations must be safe for concurrent use and honor
// context cancellation without leaking workers.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (Result, error)
}
