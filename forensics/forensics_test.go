package forensics

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// verticalGradient draws a smooth top-to-bottom ramp. It has healthy tonal
// spread, zero horizontal noise, and no hard edges, so every forensic signal
// stays quiet.
func verticalGradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		v := uint8(y * 255 / (h - 1))
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func checkScoreRange(t *testing.T, res Result) {
	t.Helper()
	if res.Score < 0 || res.Score > 1 {
		t.Fatalf("score = %v, want [0,1]", res.Score)
	}
	if res.Suspicious != (res.Score <= 0.65) {
		t.Fatalf("suspicious = %v but score = %v", res.Suspicious, res.Score)
	}
}

func TestAnalyzeCleanImage(t *testing.T) {
	a := NewAnalyzer(Config{})
	res := a.Analyze(encodePNG(t, verticalGradient(600, 450)))
	checkScoreRange(t, res)
	if res.Score != 1.0 {
		t.Fatalf("clean image score = %v (reasons: %v)", res.Score, res.Reasons)
	}
	if res.Suspicious {
		t.Fatalf("clean image flagged suspicious")
	}
	if res.Details.Format != "png" {
		t.Fatalf("format = %q, want png", res.Details.Format)
	}
	if res.Details.Width != 600 || res.Details.Height != 450 {
		t.Fatalf("dimensions = %dx%d, want 600x450", res.Details.Width, res.Details.Height)
	}
}

func TestAnalyzeTinyFlatImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for i := range img.Pix {
		img.Pix[i] = 128
	}

	a := NewAnalyzer(Config{})
	res := a.Analyze(encodePNG(t, img))
	checkScoreRange(t, res)
	// Tiny (0.25) + nearly uniform (0.30) + dominant tone (0.20).
	if res.Score != 0.25 {
		t.Fatalf("score = %v, want 0.25 (reasons: %v)", res.Score, res.Reasons)
	}
	if !res.Suspicious {
		t.Fatalf("tiny flat image not flagged suspicious")
	}
	if len(res.Reasons) != 3 {
		t.Fatalf("reasons = %v, want 3 entries", res.Reasons)
	}
}

func TestAnalyzeEditingSoftwareMarker(t *testing.T) {
	a := NewAnalyzer(Config{})

	data := []byte("\xff\xd8\xff\xe1 Exif Software: Adobe Photoshop 2024 \x00 not a real image")
	res := a.Analyze(data)
	checkScoreRange(t, res)
	if res.Details.EditingSoftware != "photoshop" {
		t.Fatalf("editing software = %q, want photoshop", res.Details.EditingSoftware)
	}
	if res.Score != 0.65 || !res.Suspicious {
		t.Fatalf("score = %v suspicious = %v, want 0.65/true", res.Score, res.Suspicious)
	}
}

func TestAnalyzeUndecodableWithoutMarkers(t *testing.T) {
	a := NewAnalyzer(Config{})
	res := a.Analyze([]byte("definitely not an image"))
	checkScoreRange(t, res)
	if res.Score != 1.0 || res.Suspicious {
		t.Fatalf("score = %v suspicious = %v, want 1.0/false", res.Score, res.Suspicious)
	}
}

func TestAnalyzeLowResolutionAndAspect(t *testing.T) {
	a := NewAnalyzer(Config{})
	res := a.Analyze(encodePNG(t, verticalGradient(1500, 250)))
	checkScoreRange(t, res)
	// Low resolution (0.10) + 6:1 aspect ratio (0.15).
	if res.Score != 0.75 {
		t.Fatalf("score = %v, want 0.75 (reasons: %v)", res.Score, res.Reasons)
	}
	if res.Suspicious {
		t.Fatalf("flagged suspicious below the threshold")
	}
	if len(res.Reasons) != 2 {
		t.Fatalf("reasons = %v, want 2 entries", res.Reasons)
	}
}

func TestAnalyzePastedRectangle(t *testing.T) {
	// A bright rectangle dropped onto a dark background leaves four gradient
	// walls, two of them inside the border-excluded zone on each axis.
	img := image.NewGray(image.Rect(0, 0, 500, 400))
	for i := range img.Pix {
		img.Pix[i] = 30
	}
	for y := 60; y < 340; y++ {
		for x := 100; x < 400; x++ {
			img.SetGray(x, y, color.Gray{Y: 220})
		}
	}

	a := NewAnalyzer(Config{})
	res := a.Analyze(encodePNG(t, img))
	checkScoreRange(t, res)
	if res.Details.CutLinesVertical != 2 || res.Details.CutLinesHorizontal != 2 {
		t.Fatalf("cut lines = %dV/%dH, want 2V/2H",
			res.Details.CutLinesVertical, res.Details.CutLinesHorizontal)
	}
	if !res.Suspicious {
		t.Fatalf("spliced image not flagged suspicious (score %v, reasons %v)", res.Score, res.Reasons)
	}
}

func TestConfigOverride(t *testing.T) {
	// 220px passes the default tiny cutoff but not a raised one.
	a := NewAnalyzer(Config{TinyDimension: 250})
	res := a.Analyze(encodePNG(t, verticalGradient(220, 450)))
	checkScoreRange(t, res)
	if !containsReasonPrefix(res.Reasons, "image very small") {
		t.Fatalf("expected tiny-image reason, got %v", res.Reasons)
	}
}

func containsReasonPrefix(reasons []string, prefix string) bool {
	for _, r := range reasons {
		if len(r) >= len(prefix) && r[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
