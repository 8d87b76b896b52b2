// Package consistency detects composited text in OCR output. Pasted or
// montaged text betrays itself at the word level: recognition confidence
// splits into two populations, font heights vary, line spacing and left
// margins jump, and regions of the image read at very different quality.
// Each signal subtracts from a score that starts at 1.
package consistency

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lempira/comprobante/ocr"
)

// Config centralizes the consistency thresholds and penalties.
type Config struct {
	// MinWords is the number of usable words below which the analysis is
	// neutral (too little signal to judge).
	MinWords int

	ConfStdDevHigh        float64
	ConfStdDevHighPenalty float64
	ConfStdDevMod         float64
	ConfStdDevModPenalty  float64

	BimodalHighConf float64
	BimodalLowConf  float64
	BimodalShare    float64
	BimodalPenalty  float64

	// LineTolerance groups words into lines: fraction of the mean word
	// height within which two words share a line.
	LineTolerance float64

	HeightCVHigh         float64
	HeightCVHighPenalty  float64
	HeightCVMod          float64
	HeightCVModPenalty   float64
	HeightJumpRatio      float64
	HeightJumpsHigh      int
	HeightJumpsHighPenalty float64
	HeightJumpsMod       int
	HeightJumpsModPenalty float64

	GapJumpFactor      float64
	GapJumpsHigh       int
	GapJumpsHighPenalty float64
	GapJumpsMod        int
	GapJumpsModPenalty float64

	MisalignShare       float64
	MisalignedHigh      int
	MisalignedHighPenalty float64
	MisalignedMod       int
	MisalignedModPenalty float64

	QuadrantMinWords     int
	QuadrantMinPerCell   int
	QuadrantSpreadHigh   float64
	QuadrantSpreadHighPenalty float64
	QuadrantSpreadMod    float64
	QuadrantSpreadModPenalty float64

	// FlagClamp caps the score when this many independent geometric
	// analyses raised an alert: several borderline anomalies together
	// outweigh any single metric.
	FlagClamp      int
	FlagClampScore float64

	ConsistentThreshold float64
}

// DefaultConfig returns the calibrated thresholds.
func DefaultConfig() Config {
	return Config{
		MinWords: 3,

		ConfStdDevHigh:        22,
		ConfStdDevHighPenalty: 0.30,
		ConfStdDevMod:         14,
		ConfStdDevModPenalty:  0.15,

		BimodalHighConf: 88,
		BimodalLowConf:  55,
		BimodalShare:    0.20,
		BimodalPenalty:  0.25,

		LineTolerance: 0.60,

		HeightCVHigh:           0.50,
		HeightCVHighPenalty:    0.22,
		HeightCVMod:            0.35,
		HeightCVModPenalty:     0.10,
		HeightJumpRatio:        1.5,
		HeightJumpsHigh:        3,
		HeightJumpsHighPenalty: 0.20,
		HeightJumpsMod:         2,
		HeightJumpsModPenalty:  0.08,

		GapJumpFactor:       2.2,
		GapJumpsHigh:        3,
		GapJumpsHighPenalty: 0.18,
		GapJumpsMod:         2,
		GapJumpsModPenalty:  0.08,

		MisalignShare:         0.18,
		MisalignedHigh:        3,
		MisalignedHighPenalty: 0.15,
		MisalignedMod:         2,
		MisalignedModPenalty:  0.06,

		QuadrantMinWords:          8,
		QuadrantMinPerCell:        2,
		QuadrantSpreadHigh:        18,
		QuadrantSpreadHighPenalty: 0.18,
		QuadrantSpreadMod:         10,
		QuadrantSpreadModPenalty:  0.07,

		FlagClamp:      2,
		FlagClampScore: 0.40,

		ConsistentThreshold: 0.55,
	}
}

// Details exposes the measured statistics for reviewer UIs and tests.
type Details struct {
	WordsAnalyzed    int                `json:"words_analyzed"`
	ConfidenceMean   float64            `json:"confidence_mean"`
	ConfidenceStdDev float64            `json:"confidence_stddev"`
	HighConfWords    int                `json:"high_conf_words"`
	LowConfWords     int                `json:"low_conf_words"`
	HeightMean       float64            `json:"height_mean"`
	HeightStdDev     float64            `json:"height_stddev"`
	HeightCV         float64            `json:"height_cv"`
	Lines            int                `json:"lines"`
	HeightJumps      int                `json:"height_jumps"`
	GapMean          float64            `json:"gap_mean"`
	GapStdDev        float64            `json:"gap_stddev"`
	GapMax           float64            `json:"gap_max"`
	AbruptGaps       int                `json:"abrupt_gaps"`
	AlignmentStdDev  float64            `json:"alignment_stddev"`
	MisalignedLines  int                `json:"misaligned_lines"`
	QuadrantConf     map[string]float64 `json:"quadrant_confidence,omitempty"`
	QuadrantSpread   float64            `json:"quadrant_spread"`
	GeometricFlags   int                `json:"geometric_flags"`
}

// Result is the consistency verdict for one set of OCR words.
type Result struct {
	Consistent bool     `json:"consistent"`
	Score      float64  `json:"score"`
	Reasons    []string `json:"reasons,omitempty"`
	Details    Details  `json:"details"`
}

// Analyzer runs the word-level consistency battery.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer builds an analyzer; a zero config selects defaults wholesale.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.MinWords == 0 {
		cfg = DefaultConfig()
	}
	return &Analyzer{cfg: cfg}
}

// Analyze inspects OCR words for signs of composited text. Fewer than
// MinWords usable words yields a neutral, consistent result.
func (a *Analyzer) Analyze(words []ocr.Word) Result {
	res := Result{Consistent: true, Score: 1}
	if len(words) < a.cfg.MinWords {
		res.Details.WordsAnalyzed = len(words)
		return res
	}

	valid := filterWords(words)
	res.Details.WordsAnalyzed = len(valid)
	if len(valid) < a.cfg.MinWords {
		return res
	}

	flags := 0
	a.checkConfidenceSpread(valid, &res)
	a.checkBimodality(valid, &res)

	lines := groupLines(valid, a.cfg.LineTolerance)
	res.Details.Lines = len(lines)
	a.checkHeights(valid, lines, &res, &flags)
	a.checkLineSpacing(lines, &res, &flags)
	a.checkAlignment(valid, lines, &res, &flags)
	a.checkQuadrants(valid, &res)

	res.Details.GeometricFlags = flags
	if flags >= a.cfg.FlagClamp {
		if res.Score > a.cfg.FlagClampScore {
			res.Score = a.cfg.FlagClampScore
		}
		res.Reasons = append(res.Reasons, fmt.Sprintf("multiple geometric anomalies detected (%d alerts)", flags))
	}

	res.Score = math.Max(0, round2(res.Score))
	res.Consistent = res.Score >= a.cfg.ConsistentThreshold
	return res
}

// filterWords keeps words with meaningful text, positive confidence, and a
// usable bounding box.
func filterWords(words []ocr.Word) []ocr.Word {
	valid := make([]ocr.Word, 0, len(words))
	for _, w := range words {
		if len(strings.TrimSpace(w.Text)) > 1 && w.Confidence > 0 && w.Box.Valid() {
			valid = append(valid, w)
		}
	}
	return valid
}

func (a *Analyzer) checkConfidenceSpread(valid []ocr.Word, res *Result) {
	confs := make([]float64, len(valid))
	for i, w := range valid {
		confs[i] = w.Confidence
	}
	mean, stddev := meanStdDev(confs)
	res.Details.ConfidenceMean = round1(mean)
	res.Details.ConfidenceStdDev = round1(stddev)

	switch {
	case stddev > a.cfg.ConfStdDevHigh:
		res.Reasons = append(res.Reasons, fmt.Sprintf("highly inconsistent text quality (confidence stddev %.1f)", stddev))
		res.Score -= a.cfg.ConfStdDevHighPenalty
	case stddev > a.cfg.ConfStdDevMod:
		res.Reasons = append(res.Reasons, fmt.Sprintf("moderately variable text quality (confidence stddev %.1f)", stddev))
		res.Score -= a.cfg.ConfStdDevModPenalty
	}
}

func (a *Analyzer) checkBimodality(valid []ocr.Word, res *Result) {
	var high, low int
	for _, w := range valid {
		if w.Confidence >= a.cfg.BimodalHighConf {
			high++
		}
		if w.Confidence < a.cfg.BimodalLowConf {
			low++
		}
	}
	res.Details.HighConfWords = high
	res.Details.LowConfWords = low

	n := float64(len(valid))
	highShare := float64(high) / n
	lowShare := float64(low) / n
	if highShare > a.cfg.BimodalShare && lowShare > a.cfg.BimodalShare {
		res.Reasons = append(res.Reasons, fmt.Sprintf("bimodal quality distribution: %.0f%% high and %.0f%% low, possible pasted text", highShare*100, lowShare*100))
		res.Score -= a.cfg.BimodalPenalty
	}
}

func (a *Analyzer) checkHeights(valid []ocr.Word, lines [][]ocr.Word, res *Result, flags *int) {
	heights := wordHeights(valid)
	if len(heights) < 5 {
		return
	}
	mean, stddev := meanStdDev(heights)
	cv := 0.0
	if mean > 0 {
		cv = stddev / mean
	}
	res.Details.HeightMean = round1(mean)
	res.Details.HeightStdDev = round1(stddev)
	res.Details.HeightCV = round3(cv)

	switch {
	case cv > a.cfg.HeightCVHigh:
		res.Reasons = append(res.Reasons, fmt.Sprintf("very different text sizes (height CV %.2f), possible pasted text in another font", cv))
		res.Score -= a.cfg.HeightCVHighPenalty
		*flags++
	case cv > a.cfg.HeightCVMod:
		res.Reasons = append(res.Reasons, fmt.Sprintf("moderate text size variation (height CV %.2f)", cv))
		res.Score -= a.cfg.HeightCVModPenalty
		*flags++
	}

	if len(lines) < 3 {
		return
	}
	lineHeights := make([]float64, 0, len(lines))
	for _, line := range lines {
		hs := wordHeights(line)
		if len(hs) == 0 {
			continue
		}
		m, _ := meanStdDev(hs)
		if m > 0 {
			lineHeights = append(lineHeights, m)
		}
	}
	if len(lineHeights) < 3 {
		return
	}

	jumps := 0
	for i := 1; i < len(lineHeights); i++ {
		hi, lo := lineHeights[i], lineHeights[i-1]
		if lo > hi {
			hi, lo = lo, hi
		}
		if lo < 1 {
			lo = 1
		}
		if hi/lo > a.cfg.HeightJumpRatio {
			jumps++
		}
	}
	res.Details.HeightJumps = jumps

	switch {
	case jumps >= a.cfg.HeightJumpsHigh:
		res.Reasons = append(res.Reasons, fmt.Sprintf("%d abrupt size changes between lines, possible montage", jumps))
		res.Score -= a.cfg.HeightJumpsHighPenalty
		*flags++
	case jumps >= a.cfg.HeightJumpsMod:
		res.Reasons = append(res.Reasons, fmt.Sprintf("%d size changes between lines", jumps))
		res.Score -= a.cfg.HeightJumpsModPenalty
	}
}

func (a *Analyzer) checkLineSpacing(lines [][]ocr.Word, res *Result, flags *int) {
	if len(lines) < 4 {
		return
	}
	centers := make([]float64, 0, len(lines))
	for _, line := range lines {
		var sum float64
		for _, w := range line {
			sum += w.Box.CenterY()
		}
		centers = append(centers, sum/float64(len(line)))
	}
	sort.Float64s(centers)

	gaps := make([]float64, 0, len(centers)-1)
	for i := 1; i < len(centers); i++ {
		gaps = append(gaps, centers[i]-centers[i-1])
	}
	if len(gaps) < 3 {
		return
	}

	mean, stddev := meanStdDev(gaps)
	abrupt := 0
	maxGap := 0.0
	for _, g := range gaps {
		if g > maxGap {
			maxGap = g
		}
		if mean > 0 && g > mean*a.cfg.GapJumpFactor {
			abrupt++
		}
	}
	res.Details.GapMean = round1(mean)
	res.Details.GapStdDev = round1(stddev)
	res.Details.GapMax = round1(maxGap)
	res.Details.AbruptGaps = abrupt

	switch {
	case abrupt >= a.cfg.GapJumpsHigh:
		res.Reasons = append(res.Reasons, fmt.Sprintf("%d abrupt spacing jumps between lines, possible splice", abrupt))
		res.Score -= a.cfg.GapJumpsHighPenalty
		*flags++
	case abrupt >= a.cfg.GapJumpsMod:
		res.Reasons = append(res.Reasons, fmt.Sprintf("%d spacing irregularities between lines", abrupt))
		res.Score -= a.cfg.GapJumpsModPenalty
	}
}

func (a *Analyzer) checkAlignment(valid []ocr.Word, lines [][]ocr.Word, res *Result, flags *int) {
	if len(lines) < 4 {
		return
	}
	margins := make([]float64, 0, len(lines))
	for _, line := range lines {
		left := math.MaxFloat64
		for _, w := range line {
			if float64(w.Box.X0) < left {
				left = float64(w.Box.X0)
			}
		}
		margins = append(margins, left)
	}

	width := 1.0
	for _, w := range valid {
		if float64(w.Box.X1) > width {
			width = float64(w.Box.X1)
		}
	}

	mean, stddev := meanStdDev(margins)
	threshold := width * a.cfg.MisalignShare
	misaligned := 0
	for _, m := range margins {
		if math.Abs(m-mean) > threshold {
			misaligned++
		}
	}
	res.Details.AlignmentStdDev = round1(stddev)
	res.Details.MisalignedLines = misaligned

	switch {
	case misaligned >= a.cfg.MisalignedHigh:
		res.Reasons = append(res.Reasons, fmt.Sprintf("%d lines with irregular horizontal alignment, possible mixed sources", misaligned))
		res.Score -= a.cfg.MisalignedHighPenalty
		*flags++
	case misaligned >= a.cfg.MisalignedMod:
		res.Reasons = append(res.Reasons, fmt.Sprintf("%d slightly misaligned lines", misaligned))
		res.Score -= a.cfg.MisalignedModPenalty
	}
}

func (a *Analyzer) checkQuadrants(valid []ocr.Word, res *Result) {
	if len(valid) < a.cfg.QuadrantMinWords {
		return
	}
	xs := make([]float64, len(valid))
	ys := make([]float64, len(valid))
	for i, w := range valid {
		xs[i] = w.Box.CenterX()
		ys[i] = w.Box.CenterY()
	}
	xMed := median(xs)
	yMed := median(ys)

	quads := map[string][]float64{}
	for i, w := range valid {
		key := "bottom-right"
		switch {
		case ys[i] <= yMed && xs[i] <= xMed:
			key = "top-left"
		case ys[i] <= yMed:
			key = "top-right"
		case xs[i] <= xMed:
			key = "bottom-left"
		}
		quads[key] = append(quads[key], w.Confidence)
	}

	means := map[string]float64{}
	var qualified []float64
	for name, confs := range quads {
		if len(confs) < a.cfg.QuadrantMinPerCell {
			continue
		}
		m, _ := meanStdDev(confs)
		means[name] = round1(m)
		qualified = append(qualified, m)
	}
	res.Details.QuadrantConf = means
	if len(qualified) < 3 {
		return
	}

	minV, maxV := qualified[0], qualified[0]
	for _, v := range qualified[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	spread := maxV - minV
	res.Details.QuadrantSpread = round1(spread)

	switch {
	case spread > a.cfg.QuadrantSpreadHigh:
		res.Reasons = append(res.Reasons, fmt.Sprintf("large quality gap between image quadrants (%.0f pts)", spread))
		res.Score -= a.cfg.QuadrantSpreadHighPenalty
	case spread > a.cfg.QuadrantSpreadMod:
		res.Reasons = append(res.Reasons, fmt.Sprintf("moderate quality gap between image quadrants (%.0f pts)", spread))
		res.Score -= a.cfg.QuadrantSpreadModPenalty
	}
}
