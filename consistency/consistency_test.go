package consistency

import (
	"testing"

	"github.com/lempira/comprobante/ocr"
)

// word builds a test word with a box at (x,y) sized w×h.
func word(text string, conf float64, x, y, w, h int) ocr.Word {
	return ocr.Word{
		Text:       text,
		Confidence: conf,
		Box:        ocr.Box{X0: x, Y0: y, X1: x + w, Y1: y + h},
	}
}

// cleanWords renders a tidy receipt layout: aligned lines, equal heights,
// uniform confidence.
func cleanWords(lines, perLine int, conf float64) []ocr.Word {
	var words []ocr.Word
	for l := 0; l < lines; l++ {
		for i := 0; i < perLine; i++ {
			words = append(words, word("token", conf, 20+i*80, 10+l*40, 60, 20))
		}
	}
	return words
}

func checkInvariant(t *testing.T, res Result) {
	t.Helper()
	if res.Consistent != (res.Score >= 0.55) {
		t.Fatalf("consistent = %v but score = %v", res.Consistent, res.Score)
	}
	if res.Score < 0 || res.Score > 1 {
		t.Fatalf("score = %v, want [0,1]", res.Score)
	}
}

func TestTooFewWordsIsNeutral(t *testing.T) {
	a := NewAnalyzer(Config{})

	res := a.Analyze(nil)
	if !res.Consistent || res.Score != 1.0 {
		t.Fatalf("nil words: consistent=%v score=%v, want true/1.0", res.Consistent, res.Score)
	}

	res = a.Analyze([]ocr.Word{word("ab", 90, 0, 0, 20, 10), word("cd", 91, 30, 0, 20, 10)})
	if !res.Consistent || res.Score != 1.0 {
		t.Fatalf("two words: consistent=%v score=%v, want true/1.0", res.Consistent, res.Score)
	}

	// Words that fail the validity filter do not count either.
	junk := []ocr.Word{
		word("x", 90, 0, 0, 20, 10),  // single char
		word("ok", 0, 0, 20, 20, 10), // zero confidence
		{Text: "ok", Confidence: 80}, // no box
		word("fine", 85, 0, 40, 20, 10),
	}
	res = a.Analyze(junk)
	if !res.Consistent || res.Score != 1.0 {
		t.Fatalf("junk words: consistent=%v score=%v, want true/1.0", res.Consistent, res.Score)
	}
	checkInvariant(t, res)
}

func TestCleanLayoutScoresPerfect(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	res := a.Analyze(cleanWords(4, 4, 92))
	checkInvariant(t, res)
	if res.Score != 1.0 {
		t.Fatalf("clean layout score = %v, want 1.0 (reasons: %v)", res.Score, res.Reasons)
	}
	if !res.Consistent {
		t.Fatalf("clean layout flagged inconsistent")
	}
	if res.Details.Lines != 4 {
		t.Fatalf("lines = %d, want 4", res.Details.Lines)
	}
}

func TestBimodalConfidenceDetected(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())

	// Three rows of four words, alternating high/low confidence within
	// each row so the spatial quadrants stay balanced.
	var words []ocr.Word
	for l := 0; l < 3; l++ {
		for i := 0; i < 4; i++ {
			conf := 95.0
			if i%2 == 1 {
				conf = 40
			}
			words = append(words, word("token", conf, 20+i*80, 10+l*40, 60, 20))
		}
	}

	res := a.Analyze(words)
	checkInvariant(t, res)
	if res.Consistent {
		t.Fatalf("bimodal words judged consistent (score %v)", res.Score)
	}
	// Confidence stddev 27.5 (-0.30) plus bimodality (-0.25).
	if res.Score != 0.45 {
		t.Fatalf("score = %v, want 0.45 (reasons: %v)", res.Score, res.Reasons)
	}
	if res.Details.HighConfWords != 6 || res.Details.LowConfWords != 6 {
		t.Fatalf("high/low counts = %d/%d, want 6/6", res.Details.HighConfWords, res.Details.LowConfWords)
	}
}

func TestGeometricFlagsClampScore(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())

	// Four lines alternating between tiny and huge glyph heights: the
	// height CV alert and the line-jump alert both fire.
	var words []ocr.Word
	for l := 0; l < 4; l++ {
		h := 8
		if l%2 == 1 {
			h = 36
		}
		for i := 0; i < 2; i++ {
			words = append(words, word("token", 90, 20+i*100, l*60, 80, h))
		}
	}

	res := a.Analyze(words)
	checkInvariant(t, res)
	if res.Details.GeometricFlags < 2 {
		t.Fatalf("geometric flags = %d, want >= 2", res.Details.GeometricFlags)
	}
	if res.Score > 0.40 {
		t.Fatalf("score = %v, want clamped to <= 0.40", res.Score)
	}
	if res.Consistent {
		t.Fatalf("clamped result judged consistent")
	}
}

func TestQuadrantSpreadDetected(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())

	// Top half reads perfectly, bottom half worse but above the bimodal
	// low threshold, so the quadrant spread fires without the bimodality
	// penalty.
	var words []ocr.Word
	for l := 0; l < 2; l++ {
		for i := 0; i < 4; i++ {
			words = append(words, word("token", 95, 20+i*80, 10+l*40, 60, 20))
		}
	}
	for l := 2; l < 4; l++ {
		for i := 0; i < 4; i++ {
			words = append(words, word("token", 60, 20+i*80, 10+l*40, 60, 20))
		}
	}

	res := a.Analyze(words)
	checkInvariant(t, res)
	if res.Details.QuadrantSpread <= 18 {
		t.Fatalf("quadrant spread = %v, want > 18", res.Details.QuadrantSpread)
	}
	if res.Score >= 1.0 {
		t.Fatalf("expected a penalty, got score %v", res.Score)
	}
}

func TestLineGrouping(t *testing.T) {
	words := []ocr.Word{
		word("bb", 90, 100, 12, 40, 20),
		word("aa", 90, 10, 10, 40, 20),
		word("cc", 90, 10, 60, 40, 20),
	}
	lines := groupLines(words, 0.6)
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0][0].Text != "aa" || lines[0][1].Text != "bb" {
		t.Fatalf("first line not ordered left to right: %v", lines[0])
	}
}
