// Package risk classifies a submitter into a low, medium, or high tier from
// their past payment record. The tier is computed fresh on every call; the
// history itself comes from an external store.
package risk

import (
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of a past payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInReview  Status = "in_review"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// PastPayment is one historical payment of the submitter, as supplied by the
// payment store.
type PastPayment struct {
	ID     string
	Status Status
	// VerificationAttempts counts how many times a receipt was run through
	// verification for this payment.
	VerificationAttempts int
	// Suspicious records whether forensics flagged the submitted image.
	Suspicious bool
	// ReferenceDuplicate records whether the payment reused another
	// payment's transfer reference.
	ReferenceDuplicate bool
}

// Tier is the submitter risk classification.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Profile is the scored risk classification with its contributing factors.
type Profile struct {
	Tier    Tier     `json:"tier"`
	Score   float64  `json:"score"`
	Factors []string `json:"factors"`
}

// Config centralizes the risk factor weights and tier cutoffs.
type Config struct {
	FailedMany        int
	FailedManyScore   float64
	FailedAny         int
	FailedAnyScore    float64
	InReviewMany      int
	InReviewManyScore float64

	// AttemptsPerPayment marks a payment as retried heavily; two or more
	// such payments outweigh the raw total.
	AttemptsPerPayment     int
	RetriedPayments        int
	RetriedPaymentsScore   float64
	TotalAttempts          int
	TotalAttemptsScore     float64

	SuspiciousMany      int
	SuspiciousManyScore float64
	SuspiciousOneScore  float64

	DuplicateRefScore float64

	// FastWindow is how soon after reservation creation a submission is
	// physically implausible for a real bank transfer.
	FastWindow       time.Duration
	FastWindowScore  float64
	QuickWindow      time.Duration
	QuickWindowScore float64

	HighTier   float64
	MediumTier float64
}

// DefaultConfig returns the calibrated weights.
func DefaultConfig() Config {
	return Config{
		FailedMany:        3,
		FailedManyScore:   0.35,
		FailedAny:         1,
		FailedAnyScore:    0.15,
		InReviewMany:      2,
		InReviewManyScore: 0.15,

		AttemptsPerPayment:   3,
		RetriedPayments:      2,
		RetriedPaymentsScore: 0.20,
		TotalAttempts:        5,
		TotalAttemptsScore:   0.10,

		SuspiciousMany:      2,
		SuspiciousManyScore: 0.25,
		SuspiciousOneScore:  0.10,

		DuplicateRefScore: 0.30,

		FastWindow:       30 * time.Second,
		FastWindowScore:  0.25,
		QuickWindow:      120 * time.Second,
		QuickWindowScore: 0.10,

		HighTier:   0.50,
		MediumTier: 0.25,
	}
}

// Scorer computes risk profiles.
type Scorer struct {
	cfg Config
	now func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// NewScorer builds a scorer; a zero config selects defaults wholesale.
func NewScorer(cfg Config, opts ...Option) *Scorer {
	if cfg.HighTier == 0 {
		cfg = DefaultConfig()
	}
	s := &Scorer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score classifies the submitter. reservationCreated is when the reservation
// being paid for was created; pass the zero time when unknown. A submitter
// with no history at all is low risk by definition.
func (s *Scorer) Score(history []PastPayment, reservationCreated time.Time) Profile {
	if len(history) == 0 {
		return Profile{Tier: TierLow, Score: 0, Factors: []string{"new submitter, no payment history"}}
	}

	var factors []string
	var score float64

	var failed, inReview, retried, totalAttempts, suspicious, dupRefs int
	for _, p := range history {
		switch p.Status {
		case StatusFailed:
			failed++
		case StatusInReview:
			inReview++
		}
		totalAttempts += p.VerificationAttempts
		if p.VerificationAttempts >= s.cfg.AttemptsPerPayment {
			retried++
		}
		if p.Suspicious {
			suspicious++
		}
		if p.ReferenceDuplicate {
			dupRefs++
		}
	}

	switch {
	case failed >= s.cfg.FailedMany:
		factors = append(factors, fmt.Sprintf("%d failed payments on record", failed))
		score += s.cfg.FailedManyScore
	case failed >= s.cfg.FailedAny:
		factors = append(factors, fmt.Sprintf("%d previously failed payment(s)", failed))
		score += s.cfg.FailedAnyScore
	}

	if inReview >= s.cfg.InReviewMany {
		factors = append(factors, fmt.Sprintf("%d payments in manual review at once", inReview))
		score += s.cfg.InReviewManyScore
	}

	switch {
	case retried >= s.cfg.RetriedPayments:
		factors = append(factors, fmt.Sprintf("%d payments with %d+ verification attempts", retried, s.cfg.AttemptsPerPayment))
		score += s.cfg.RetriedPaymentsScore
	case totalAttempts >= s.cfg.TotalAttempts:
		factors = append(factors, fmt.Sprintf("%d verification attempts in total", totalAttempts))
		score += s.cfg.TotalAttemptsScore
	}

	switch {
	case suspicious >= s.cfg.SuspiciousMany:
		factors = append(factors, fmt.Sprintf("%d prior receipts with suspicious images", suspicious))
		score += s.cfg.SuspiciousManyScore
	case suspicious == 1:
		factors = append(factors, "1 prior receipt with a suspicious image")
		score += s.cfg.SuspiciousOneScore
	}

	if dupRefs >= 1 {
		factors = append(factors, fmt.Sprintf("%d prior attempt(s) with a duplicated reference", dupRefs))
		score += s.cfg.DuplicateRefScore
	}

	if !reservationCreated.IsZero() {
		elapsed := s.now().Sub(reservationCreated)
		switch {
		case elapsed < s.cfg.FastWindow:
			factors = append(factors, fmt.Sprintf("receipt submitted %ds after creating the reservation", int(elapsed.Round(time.Second).Seconds())))
			score += s.cfg.FastWindowScore
		case elapsed < s.cfg.QuickWindow:
			factors = append(factors, fmt.Sprintf("receipt submitted %ds after creating the reservation", int(elapsed.Round(time.Second).Seconds())))
			score += s.cfg.QuickWindowScore
		}
	}

	score = math.Min(score, 1)
	tier := TierLow
	switch {
	case score >= s.cfg.HighTier:
		tier = TierHigh
	case score >= s.cfg.MediumTier:
		tier = TierMedium
	}

	if len(factors) == 0 {
		factors = append(factors, "clean payment history")
	}
	return Profile{Tier: tier, Score: math.Round(score*100) / 100, Factors: factors}
}
