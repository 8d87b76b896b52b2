// Package forensics inspects raw receipt images for manipulation signals:
// editing-software traces in metadata, implausible geometry, flat tonal
// statistics, recompression error (ELA), uneven block noise, and straight cut
// lines. Each signal adds a penalty; the final score is 1 minus the clamped
// total, so 1 means authentic-looking.
package forensics

import (
	"bytes"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Config centralizes every forensic threshold and penalty so the heuristics
// can be tuned without touching the analysis code. Values mirror the system
// this detector was calibrated on.
type Config struct {
	// EditingSoftware lists lowercase editor names matched against image
	// metadata. First match wins.
	EditingSoftware []string
	// MetadataScanLimit bounds how many leading bytes of the file are
	// scanned for editor names. EXIF and tEXt chunks live near the start.
	MetadataScanLimit int
	EditingPenalty    float64

	TinyDimension  int
	SmallDimension int
	TinyPenalty    float64
	SmallPenalty   float64
	MaxAspectRatio float64
	AspectPenalty  float64

	FlatStdDev          float64
	LowStdDev           float64
	FlatPenalty         float64
	LowVariationPenalty float64
	DominantToneShare   float64
	DominantTonePenalty float64

	ELAWidth          int
	ELAQuality        int
	ELAPixelThreshold int
	ELAHighErrorShare float64
	ELAPenalty        float64

	NoiseGrid             int
	NoiseMinCell          int
	NoiseHighCV           float64
	NoiseModerateCV       float64
	NoiseHighPenalty      float64
	NoiseModeratePenalty  float64

	CutLineMaxSize     int
	CutLineGradient    int
	CutLineShare       float64
	CutLineBorder      float64
	CutLineManyCount   int
	CutLineFewCount    int
	CutLineManyPenalty float64
	CutLineFewPenalty  float64

	// SuspiciousThreshold is the accumulated penalty at which the image is
	// flagged suspicious.
	SuspiciousThreshold float64
}

// DefaultConfig returns the calibrated thresholds.
func DefaultConfig() Config {
	return Config{
		EditingSoftware: []string{
			"photoshop", "gimp", "paint.net", "paint", "pixlr", "canva",
			"illustrator", "affinity", "corel", "inkscape", "figma",
			"snapseed", "lightroom", "picsart", "fotor", "befunky",
		},
		MetadataScanLimit: 4096,
		EditingPenalty:    0.35,

		TinyDimension:  200,
		SmallDimension: 400,
		TinyPenalty:    0.25,
		SmallPenalty:   0.10,
		MaxAspectRatio: 5,
		AspectPenalty:  0.15,

		FlatStdDev:          15,
		LowStdDev:           30,
		FlatPenalty:         0.30,
		LowVariationPenalty: 0.10,
		DominantToneShare:   0.70,
		DominantTonePenalty: 0.20,

		ELAWidth:          800,
		ELAQuality:        15,
		ELAPixelThreshold: 80,
		ELAHighErrorShare: 0.15,
		ELAPenalty:        0.20,

		NoiseGrid:            3,
		NoiseMinCell:         50,
		NoiseHighCV:          0.60,
		NoiseModerateCV:      0.40,
		NoiseHighPenalty:     0.25,
		NoiseModeratePenalty: 0.10,

		CutLineMaxSize:     600,
		CutLineGradient:    60,
		CutLineShare:       0.50,
		CutLineBorder:      0.10,
		CutLineManyCount:   3,
		CutLineFewCount:    1,
		CutLineManyPenalty: 0.25,
		CutLineFewPenalty:  0.10,

		SuspiciousThreshold: 0.35,
	}
}

// Details carries the measured values behind a Result, for reviewer UIs and
// regression tests.
type Details struct {
	Format           string    `json:"format,omitempty"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	EditingSoftware  string    `json:"editing_software,omitempty"`
	BrightnessMean   float64   `json:"brightness_mean"`
	BrightnessStdDev float64   `json:"brightness_stddev"`
	DominantTonePct  float64   `json:"dominant_tone_pct"`
	ELAMeanError     float64   `json:"ela_mean_error"`
	ELAHighErrorPct  float64   `json:"ela_high_error_pct"`
	NoisePerCell     []float64 `json:"noise_per_cell,omitempty"`
	NoiseMean        float64   `json:"noise_mean"`
	NoiseCV          float64   `json:"noise_cv"`
	CutLinesVertical int       `json:"cut_lines_vertical"`
	CutLinesHorizontal int     `json:"cut_lines_horizontal"`
	StrongEdges      int       `json:"strong_edges"`
}

// Result is the forensic verdict for one image.
type Result struct {
	// Suspicious is set once the accumulated penalty crosses the threshold.
	Suspicious bool `json:"suspicious"`
	// Score is 1 minus the clamped penalty: 1 = authentic-looking.
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
	Details Details  `json:"details"`
}

// Analyzer runs the forensic signal battery.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer builds an analyzer. Zero-valued config fields are replaced with
// defaults so callers can override selectively.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if len(cfg.EditingSoftware) == 0 {
		cfg.EditingSoftware = def.EditingSoftware
	}
	if cfg.MetadataScanLimit == 0 {
		cfg.MetadataScanLimit = def.MetadataScanLimit
	}
	if cfg.EditingPenalty == 0 {
		cfg.EditingPenalty = def.EditingPenalty
	}
	if cfg.TinyDimension == 0 {
		cfg.TinyDimension = def.TinyDimension
	}
	if cfg.SmallDimension == 0 {
		cfg.SmallDimension = def.SmallDimension
	}
	if cfg.TinyPenalty == 0 {
		cfg.TinyPenalty = def.TinyPenalty
	}
	if cfg.SmallPenalty == 0 {
		cfg.SmallPenalty = def.SmallPenalty
	}
	if cfg.MaxAspectRatio == 0 {
		cfg.MaxAspectRatio = def.MaxAspectRatio
	}
	if cfg.AspectPenalty == 0 {
		cfg.AspectPenalty = def.AspectPenalty
	}
	if cfg.FlatStdDev == 0 {
		cfg.FlatStdDev = def.FlatStdDev
	}
	if cfg.LowStdDev == 0 {
		cfg.LowStdDev = def.LowStdDev
	}
	if cfg.FlatPenalty == 0 {
		cfg.FlatPenalty = def.FlatPenalty
	}
	if cfg.LowVariationPenalty == 0 {
		cfg.LowVariationPenalty = def.LowVariationPenalty
	}
	if cfg.DominantToneShare == 0 {
		cfg.DominantToneShare = def.DominantToneShare
	}
	if cfg.DominantTonePenalty == 0 {
		cfg.DominantTonePenalty = def.DominantTonePenalty
	}
	if cfg.ELAWidth == 0 {
		cfg.ELAWidth = def.ELAWidth
	}
	if cfg.ELAQuality == 0 {
		cfg.ELAQuality = def.ELAQuality
	}
	if cfg.ELAPixelThreshold == 0 {
		cfg.ELAPixelThreshold = def.ELAPixelThreshold
	}
	if cfg.ELAHighErrorShare == 0 {
		cfg.ELAHighErrorShare = def.ELAHighErrorShare
	}
	if cfg.ELAPenalty == 0 {
		cfg.ELAPenalty = def.ELAPenalty
	}
	if cfg.NoiseGrid == 0 {
		cfg.NoiseGrid = def.NoiseGrid
	}
	if cfg.NoiseMinCell == 0 {
		cfg.NoiseMinCell = def.NoiseMinCell
	}
	if cfg.NoiseHighCV == 0 {
		cfg.NoiseHighCV = def.NoiseHighCV
	}
	if cfg.NoiseModerateCV == 0 {
		cfg.NoiseModerateCV = def.NoiseModerateCV
	}
	if cfg.NoiseHighPenalty == 0 {
		cfg.NoiseHighPenalty = def.NoiseHighPenalty
	}
	if cfg.NoiseModeratePenalty == 0 {
		cfg.NoiseModeratePenalty = def.NoiseModeratePenalty
	}
	if cfg.CutLineMaxSize == 0 {
		cfg.CutLineMaxSize = def.CutLineMaxSize
	}
	if cfg.CutLineGradient == 0 {
		cfg.CutLineGradient = def.CutLineGradient
	}
	if cfg.CutLineShare == 0 {
		cfg.CutLineShare = def.CutLineShare
	}
	if cfg.CutLineBorder == 0 {
		cfg.CutLineBorder = def.CutLineBorder
	}
	if cfg.CutLineManyCount == 0 {
		cfg.CutLineManyCount = def.CutLineManyCount
	}
	if cfg.CutLineFewCount == 0 {
		cfg.CutLineFewCount = def.CutLineFewCount
	}
	if cfg.CutLineManyPenalty == 0 {
		cfg.CutLineManyPenalty = def.CutLineManyPenalty
	}
	if cfg.CutLineFewPenalty == 0 {
		cfg.CutLineFewPenalty = def.CutLineFewPenalty
	}
	if cfg.SuspiciousThreshold == 0 {
		cfg.SuspiciousThreshold = def.SuspiciousThreshold
	}
	return &Analyzer{cfg: cfg}
}

// Analyze runs every forensic signal over the encoded image. Signals that
// cannot be computed for a particular image are skipped without penalty; a
// completely undecodable image yields a neutral result (the pipeline treats
// decode failure separately).
func (a *Analyzer) Analyze(data []byte) Result {
	res := Result{Score: 1}
	var penalty float64

	if sw := a.detectEditingSoftware(data); sw != "" {
		res.Details.EditingSoftware = sw
		res.Reasons = append(res.Reasons, "editing software detected: "+sw)
		penalty += a.cfg.EditingPenalty
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		res.Suspicious = penalty >= a.cfg.SuspiciousThreshold
		res.Score = round2(1 - min1(penalty))
		return res
	}
	res.Details.Format = format

	penalty += a.checkGeometry(img, &res)

	gray := toGray(img)
	penalty += a.checkTonalStats(gray, &res)
	penalty += a.checkELA(img, &res)
	penalty += a.checkBlockNoise(gray, &res)
	penalty += a.checkCutLines(img, &res)

	penalty = min1(penalty)
	res.Score = round2(1 - penalty)
	res.Suspicious = penalty >= a.cfg.SuspiciousThreshold
	return res
}

// detectEditingSoftware scans the file header for known editor names. EXIF
// segments and PNG text chunks sit before the pixel data, so a bounded prefix
// scan is enough.
func (a *Analyzer) detectEditingSoftware(data []byte) string {
	limit := a.cfg.MetadataScanLimit
	if limit > len(data) {
		limit = len(data)
	}
	head := strings.ToLower(string(data[:limit]))
	for _, sw := range a.cfg.EditingSoftware {
		if strings.Contains(head, sw) {
			return sw
		}
	}
	return ""
}

func (a *Analyzer) checkGeometry(img image.Image, res *Result) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	res.Details.Width = w
	res.Details.Height = h

	var penalty float64
	if w < a.cfg.TinyDimension || h < a.cfg.TinyDimension {
		res.Reasons = append(res.Reasons, reasonf("image very small (%dx%dpx)", w, h))
		penalty += a.cfg.TinyPenalty
	} else if w < a.cfg.SmallDimension || h < a.cfg.SmallDimension {
		res.Reasons = append(res.Reasons, reasonf("low resolution image (%dx%dpx)", w, h))
		penalty += a.cfg.SmallPenalty
	}

	long, short := float64(w), float64(h)
	if short > long {
		long, short = short, long
	}
	if short > 0 && long/short > a.cfg.MaxAspectRatio {
		res.Reasons = append(res.Reasons, reasonf("unusual aspect ratio (%.1f:1)", long/short))
		penalty += a.cfg.AspectPenalty
	}
	return penalty
}

func (a *Analyzer) checkTonalStats(gray *image.Gray, res *Result) float64 {
	pix := gray.Pix
	n := len(pix)
	if n == 0 {
		return 0
	}

	var sum float64
	for _, p := range pix {
		sum += float64(p)
	}
	mean := sum / float64(n)

	var varSum float64
	for _, p := range pix {
		d := float64(p) - mean
		varSum += d * d
	}
	stddev := sqrt(varSum / float64(n))

	res.Details.BrightnessMean = round2(mean)
	res.Details.BrightnessStdDev = round2(stddev)

	var penalty float64
	if stddev < a.cfg.FlatStdDev {
		res.Reasons = append(res.Reasons, reasonf("image nearly uniform (stddev %.1f)", stddev))
		penalty += a.cfg.FlatPenalty
	} else if stddev < a.cfg.LowStdDev {
		res.Reasons = append(res.Reasons, reasonf("low tonal variation (stddev %.1f)", stddev))
		penalty += a.cfg.LowVariationPenalty
	}

	var bins [16]int
	for _, p := range pix {
		bins[p>>4]++
	}
	maxBin := 0
	for _, b := range bins {
		if b > maxBin {
			maxBin = b
		}
	}
	share := float64(maxBin) / float64(n)
	res.Details.DominantTonePct = round2(share * 100)
	if share > a.cfg.DominantToneShare {
		res.Reasons = append(res.Reasons, reasonf("dominant tone covers %.0f%% of pixels", share*100))
		penalty += a.cfg.DominantTonePenalty
	}
	return penalty
}
