// Package decision folds every analysis of a receipt into one weighted
// confidence score and the final approve-or-escalate verdict. A payment is
// never terminally rejected here: anything not approved goes to manual
// review.
package decision

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lempira/comprobante/bankcheck"
	"github.com/lempira/comprobante/consistency"
	"github.com/lempira/comprobante/fields"
	"github.com/lempira/comprobante/forensics"
	"github.com/lempira/comprobante/risk"
)

// Config centralizes the scoring weights and approval thresholds. The seven
// positive weights sum to 0.95; the missing 0.05 is the inconsistent-text
// penalty.
type Config struct {
	// AmountTolerance is the relative error within which a found amount
	// counts as matching the expected one.
	AmountTolerance float64
	// MaxAgeDays is how old a receipt date may be, today inclusive.
	MaxAgeDays int
	// MinConfidence is the composite score needed for validity.
	MinConfidence float64
	// MediumRiskOCRConfidence is the OCR confidence below which a
	// medium-risk submitter is escalated.
	MediumRiskOCRConfidence float64

	WeightAmount      float64
	WeightDateRecent  float64
	WeightDateAny     float64
	WeightReference   float64
	WeightOCR         float64
	WeightStructure   float64
	WeightImage       float64
	WeightConsistency float64
	// InconsistentPenalty is subtracted once when the text analyzer judged
	// the words inconsistent.
	InconsistentPenalty float64
}

// DefaultConfig returns the calibrated weights.
func DefaultConfig() Config {
	return Config{
		AmountTolerance:         0.02,
		MaxAgeDays:              5,
		MinConfidence:           0.65,
		MediumRiskOCRConfidence: 0.80,

		WeightAmount:        0.30,
		WeightDateRecent:    0.18,
		WeightDateAny:       0.07,
		WeightReference:     0.08,
		WeightOCR:           0.09,
		WeightStructure:     0.13,
		WeightImage:         0.10,
		WeightConsistency:   0.07,
		InconsistentPenalty: 0.05,
	}
}

// Input collects everything the engine weighs for one receipt.
type Input struct {
	// ExpectedAmount is the payment amount the submitter claims to have
	// transferred.
	ExpectedAmount float64
	// OCRConfidence is the raw recognition confidence in [0,1].
	OCRConfidence float64
	// Fields holds the extracted amounts, dates, and reference.
	Fields fields.Fields

	// Analysis results; nil means the stage could not run and its weight
	// is simply not earned.
	Forensics   *forensics.Result
	Structure   *bankcheck.Result
	Consistency *consistency.Result

	// ImageDuplicate is the external near-duplicate hash verdict.
	ImageDuplicate bool
	// ReferenceDuplicate is set when another payment already used the
	// extracted reference.
	ReferenceDuplicate bool
	// Risk is the submitter's risk profile.
	Risk risk.Profile
}

// Details records how each factor fared, for reviewer UIs.
type Details struct {
	AmountOK     bool `json:"amount_ok"`
	DateOK       bool `json:"date_ok"`
	ReferenceOK  bool `json:"reference_ok"`
	StructureOK  bool `json:"structure_ok"`
	Suspicious   bool `json:"suspicious_image"`
	Inconsistent bool `json:"inconsistent_text"`
}

// Outcome is the engine's verdict.
type Outcome struct {
	// Approved means the payment may auto-complete. When false, the
	// payment must be routed to manual review.
	Approved             bool `json:"approved"`
	RequiresManualReview bool `json:"requires_manual_review"`
	// Valid reports whether the receipt content alone passed; duplicates
	// and submitter risk can still withhold approval.
	Valid bool `json:"valid"`
	// Confidence is the composite weighted score in [0,1].
	Confidence float64 `json:"confidence"`

	// Amount is the closest extracted amount, meaningful when AmountFound.
	Amount      float64 `json:"amount,omitempty"`
	AmountFound bool    `json:"amount_found"`
	// Date is the matched (or first found) receipt date.
	Date      time.Time `json:"date,omitempty"`
	DateFound bool      `json:"date_found"`
	Reference string    `json:"reference,omitempty"`

	// RejectionReason is internal diagnostic text, never shown to the
	// submitter.
	RejectionReason string  `json:"rejection_reason,omitempty"`
	Details         Details `json:"details"`
}

// Engine evaluates receipts.
type Engine struct {
	cfg Config
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine; a zero config selects defaults wholesale.
func NewEngine(cfg Config, opts ...Option) *Engine {
	if cfg.MinConfidence == 0 {
		cfg = DefaultConfig()
	}
	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores the receipt and decides between approval and escalation.
func (e *Engine) Evaluate(in Input) Outcome {
	var out Outcome

	amountOK, amountFound, amount := e.matchAmount(in.Fields.Amounts, in.ExpectedAmount)
	dateOK, dateFound, date := e.matchDate(in.Fields.Dates)
	referenceOK := in.Fields.Reference != ""

	out.Amount = amount
	out.AmountFound = amountFound
	out.Date = date
	out.DateFound = dateFound
	out.Reference = in.Fields.Reference

	var score float64
	switch {
	case amountOK:
		score += e.cfg.WeightAmount
	case amountFound && in.ExpectedAmount > 0:
		relErr := math.Abs(amount-in.ExpectedAmount) / in.ExpectedAmount
		score += math.Max(0, e.cfg.WeightAmount*(1-relErr))
	}

	switch {
	case dateOK:
		score += e.cfg.WeightDateRecent
	case dateFound:
		score += e.cfg.WeightDateAny
	}

	if referenceOK {
		score += e.cfg.WeightReference
	}
	score += e.cfg.WeightOCR * in.OCRConfidence
	if in.Structure != nil {
		score += e.cfg.WeightStructure * in.Structure.Score
	}
	if in.Forensics != nil {
		score += e.cfg.WeightImage * in.Forensics.Score
	}
	if in.Consistency != nil {
		score += e.cfg.WeightConsistency * in.Consistency.Score
	}

	inconsistent := in.Consistency != nil && !in.Consistency.Consistent
	if inconsistent {
		score = math.Max(0, score-e.cfg.InconsistentPenalty)
	}
	suspicious := in.Forensics != nil && in.Forensics.Suspicious

	out.Confidence = math.Round(score*100) / 100
	out.Valid = out.Confidence >= e.cfg.MinConfidence && amountOK && !suspicious && !inconsistent

	out.Details = Details{
		AmountOK:     amountOK,
		DateOK:       dateOK,
		ReferenceOK:  referenceOK,
		StructureOK:  in.Structure != nil && in.Structure.Plausible,
		Suspicious:   suspicious,
		Inconsistent: inconsistent,
	}

	out.Approved = out.Valid
	switch {
	case in.ImageDuplicate, in.ReferenceDuplicate:
		out.Approved = false
	case in.Risk.Tier == risk.TierHigh:
		out.Approved = false
	case in.Risk.Tier == risk.TierMedium && in.OCRConfidence < e.cfg.MediumRiskOCRConfidence:
		out.Approved = false
	}
	out.RequiresManualReview = !out.Approved

	if !out.Approved {
		out.RejectionReason = e.rejectionReason(in, out)
	}
	return out
}

// matchAmount finds an extracted amount within tolerance of the expected
// one, falling back to the closest candidate for diagnostics.
func (e *Engine) matchAmount(amounts []float64, expected float64) (ok, found bool, best float64) {
	if len(amounts) == 0 || expected <= 0 {
		return false, false, 0
	}
	tolerance := expected * e.cfg.AmountTolerance
	for _, a := range amounts {
		if math.Abs(a-expected) <= tolerance {
			return true, true, a
		}
	}
	best = amounts[0]
	for _, a := range amounts[1:] {
		if math.Abs(a-expected) < math.Abs(best-expected) {
			best = a
		}
	}
	return false, true, best
}

// matchDate looks for a date within the recency window, today inclusive,
// falling back to the first found date for diagnostics.
func (e *Engine) matchDate(dates []time.Time) (ok, found bool, match time.Time) {
	if len(dates) == 0 {
		return false, false, time.Time{}
	}
	now := e.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	limit := today.AddDate(0, 0, -e.cfg.MaxAgeDays)
	for _, d := range dates {
		if !d.Before(limit) && !d.After(today) {
			return true, true, d
		}
	}
	return false, true, dates[0]
}

// rejectionReason assembles the internal diagnostic text from the failing
// factors, most damning first.
func (e *Engine) rejectionReason(in Input, out Outcome) string {
	var reasons []string

	if in.ImageDuplicate {
		reasons = append(reasons, "image matches a previously submitted receipt")
	}
	if in.ReferenceDuplicate {
		reasons = append(reasons, "reference number already used by another payment")
	}
	if out.Details.Suspicious && in.Forensics != nil {
		reasons = append(reasons, "suspicious image: "+strings.Join(in.Forensics.Reasons, "; "))
	}
	if !out.Details.AmountOK {
		if out.AmountFound {
			reasons = append(reasons, fmt.Sprintf("amount mismatch: found %.2f, expected %.2f", out.Amount, in.ExpectedAmount))
		} else {
			reasons = append(reasons, "no amount detected on the receipt")
		}
	}
	if !out.Details.DateOK {
		if out.DateFound {
			reasons = append(reasons, "date out of range: "+out.Date.Format("2006-01-02"))
		} else {
			reasons = append(reasons, "no date detected on the receipt")
		}
	}
	if !out.Details.ReferenceOK {
		reasons = append(reasons, "no reference number detected")
	}
	if out.Details.Inconsistent && in.Consistency != nil {
		reasons = append(reasons, "inconsistent text: "+strings.Join(in.Consistency.Reasons, "; "))
	}
	if in.Structure != nil && !in.Structure.Plausible {
		reasons = append(reasons, "text does not resemble a bank receipt")
	}
	if out.Confidence < e.cfg.MinConfidence {
		reasons = append(reasons, fmt.Sprintf("insufficient confidence: %.2f", out.Confidence))
	}
	if in.Risk.Tier == risk.TierHigh {
		reasons = append(reasons, "high-risk submitter history")
	}
	if in.Risk.Tier == risk.TierMedium && in.OCRConfidence < e.cfg.MediumRiskOCRConfidence {
		reasons = append(reasons, "medium-risk submitter with low recognition confidence")
	}

	if len(reasons) == 0 {
		return "verification not passed"
	}
	return strings.Join(reasons, ". ")
}
