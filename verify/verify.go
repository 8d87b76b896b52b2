// Package verify orchestrates the full receipt verification pipeline:
// forensics, perceptual hashing, double-pass OCR, text consistency, bank
// structure, field extraction, submitter risk, and the final weighted
// decision. The independent stages run concurrently; the decision waits for
// all of them.
//
// The pipeline never rejects terminally. Whatever goes wrong, the submitter
// sees either "approved" or "submitted for review".
package verify

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/lempira/comprobante/bankcheck"
	"github.com/lempira/comprobante/consistency"
	"github.com/lempira/comprobante/decision"
	"github.com/lempira/comprobante/fields"
	"github.com/lempira/comprobante/forensics"
	"github.com/lempira/comprobante/observability"
	"github.com/lempira/comprobante/ocr"
	"github.com/lempira/comprobante/phash"
	"github.com/lempira/comprobante/risk"
)

// Request is one receipt submission to verify.
type Request struct {
	// Image is the raw photo upload. The caller is responsible for size
	// and mimetype policy; the pipeline only needs decodable bytes.
	Image    []byte
	Mimetype string
	// ExpectedAmount is the payment amount being claimed.
	ExpectedAmount float64
	// PaymentID identifies the payment this receipt belongs to and is
	// excluded from duplicate lookups.
	PaymentID string
	// SubmitterID keys the risk history lookup.
	SubmitterID string
	// ReservationCreatedAt feeds the submission-speed risk factor; zero
	// when unknown.
	ReservationCreatedAt time.Time
}

// PriorMatch identifies an earlier payment whose receipt image is nearly
// identical to the one under review.
type PriorMatch struct {
	PaymentID string
	Distance  int
}

// HashIndex is the external perceptual-hash store. FindNear returns the
// closest prior receipt within maxDistance, excluding the payment itself.
type HashIndex interface {
	FindNear(ctx context.Context, h phash.Hash, maxDistance int, excludePaymentID string) (PriorMatch, bool, error)
}

// PaymentHistory is the external payment store view the pipeline consumes:
// the submitter's past payments for risk scoring, and whether a transfer
// reference is already claimed by another payment.
type PaymentHistory interface {
	ForSubmitter(ctx context.Context, submitterID string) ([]risk.PastPayment, error)
	ReferenceInUse(ctx context.Context, reference, excludePaymentID string) (bool, error)
}

// Decision is the full verification outcome, persisted by the caller and
// shown to reviewers. Submitters only ever see ClientView.
type Decision struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`

	Approved             bool `json:"approved"`
	RequiresManualReview bool `json:"requires_manual_review"`
	// Valid reports whether the receipt content alone passed.
	Valid      bool    `json:"valid"`
	Confidence float64 `json:"confidence"`
	// RejectionReason is internal diagnostic text for reviewers.
	RejectionReason string `json:"rejection_reason,omitempty"`

	Text          string  `json:"text,omitempty"`
	OCRConfidence float64 `json:"ocr_confidence"`
	WordCount     int     `json:"word_count"`
	// PHash is the submission's own perceptual hash, for the caller to
	// persist into the index. Empty when hashing failed.
	PHash              string `json:"phash,omitempty"`
	ImageDuplicate     bool   `json:"image_duplicate"`
	DuplicateOf        string `json:"duplicate_of,omitempty"`
	ReferenceDuplicate bool   `json:"reference_duplicate"`

	Fields      fields.Fields       `json:"fields"`
	Forensics   *forensics.Result   `json:"forensics,omitempty"`
	Structure   *bankcheck.Result   `json:"structure,omitempty"`
	Consistency *consistency.Result `json:"consistency,omitempty"`
	Risk        risk.Profile        `json:"risk"`
	Details     decision.Details    `json:"details"`

	EvaluatedAt time.Time `json:"evaluated_at"`
}

// ClientView is the only projection of a decision a submitter may see.
type ClientView struct {
	Approved             bool `json:"approved"`
	RequiresManualReview bool `json:"requires_manual_review"`
}

// ClientView reduces the decision to the submitter-facing fields.
func (d Decision) ClientView() ClientView {
	return ClientView{Approved: d.Approved, RequiresManualReview: d.RequiresManualReview}
}

// ManualVerdict is a human reviewer's final call on an escalated payment.
type ManualVerdict struct {
	PaymentID  string
	Approved   bool
	ReviewerID string
	Notes      string
}

// Config aggregates every stage configuration plus the pipeline's own knobs.
type Config struct {
	Forensics   forensics.Config
	Consistency consistency.Config
	Bank        bankcheck.Config
	Fields      fields.Config
	Risk        risk.Config
	Decision    decision.Config
	Preprocess  ocr.PreprocessConfig

	// OCRTimeout bounds the double recognition pass; expiry is treated as
	// illegible text, not an error.
	OCRTimeout time.Duration
	// MinLegibleChars is the trimmed text length below which the receipt
	// is illegible and the pipeline short-circuits to review.
	MinLegibleChars int
	// DuplicateDistance is the Hamming cutoff for near-identical images.
	DuplicateDistance int
}

// DefaultConfig returns the calibrated pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Forensics:   forensics.DefaultConfig(),
		Consistency: consistency.DefaultConfig(),
		Bank:        bankcheck.DefaultConfig(),
		Fields:      fields.DefaultConfig(),
		Risk:        risk.DefaultConfig(),
		Decision:    decision.DefaultConfig(),
		Preprocess:  ocr.DefaultPreprocessConfig(),

		OCRTimeout:        30 * time.Second,
		MinLegibleChars:   10,
		DuplicateDistance: 10,
	}
}

// Verifier runs the pipeline. Construct one per process and share it; the
// underlying OCR engine is expensive and long-lived.
type Verifier struct {
	cfg Config

	extractor   *ocr.Extractor
	forensics   *forensics.Analyzer
	consistency *consistency.Analyzer
	bank        *bankcheck.Validator
	fields      *fields.Extractor
	risk        *risk.Scorer
	engine      *decision.Engine

	hashes  HashIndex
	history PaymentHistory

	log     observability.Logger
	metrics observability.Metrics
	now     func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger attaches a structured logger.
func WithLogger(log observability.Logger) Option {
	return func(v *Verifier) { v.log = log }
}

// WithMetrics attaches an instrumentation sink.
func WithMetrics(m observability.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// New builds a verifier around a recognition engine and the two external
// collaborators. A zero Config selects defaults wholesale.
func New(engine ocr.Engine, hashes HashIndex, history PaymentHistory, cfg Config, opts ...Option) *Verifier {
	if cfg.OCRTimeout == 0 {
		cfg = DefaultConfig()
	}
	v := &Verifier{
		cfg:     cfg,
		hashes:  hashes,
		history: history,
		log:     observability.NopLogger{},
		metrics: observability.NopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.extractor = ocr.NewExtractor(engine, cfg.Preprocess)
	v.forensics = forensics.NewAnalyzer(cfg.Forensics)
	v.consistency = consistency.NewAnalyzer(cfg.Consistency)
	v.bank = bankcheck.NewValidator(cfg.Bank)
	v.fields = fields.NewExtractor(cfg.Fields)
	v.risk = risk.NewScorer(cfg.Risk, risk.WithNow(v.now))
	v.engine = decision.NewEngine(cfg.Decision, decision.WithNow(v.now))
	return v
}

// Verify runs the full pipeline over one submission. It returns an error
// only when the caller's context ends; every processing failure becomes a
// manual-review decision instead.
func (v *Verifier) Verify(ctx context.Context, req Request) (Decision, error) {
	log := v.log.With(observability.String("payment_id", req.PaymentID))
	log.Info("verifying receipt",
		observability.Float64("expected_amount", req.ExpectedAmount),
		observability.Int("image_bytes", len(req.Image)))

	if _, _, err := image.DecodeConfig(bytes.NewReader(req.Image)); err != nil {
		log.Warn("image not decodable", observability.Error("err", err))
		return v.finish(log, v.processingFailure(req, "image could not be decoded")), nil
	}

	var (
		forRes forensics.Result

		hash    phash.Hash
		hashOK  bool
		imgDup  bool
		dupOf   string
		dupDist int

		ocrRes    ocr.Result
		illegible bool
		ocrFatal  bool

		consRes   *consistency.Result
		bankRes   *bankcheck.Result
		extracted fields.Fields
		refDup    bool

		profile risk.Profile
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := v.now()
		forRes = v.forensics.Analyze(req.Image)
		v.metrics.Timing(observability.MetricForensicsTime, v.now().Sub(start))
		return nil
	})

	g.Go(func() error {
		h, err := phash.FromBytes(req.Image)
		if err != nil {
			log.Warn("phash failed", observability.Error("err", err))
			return nil
		}
		hash, hashOK = h, true
		if v.hashes == nil {
			return nil
		}
		match, found, err := v.hashes.FindNear(gctx, h, v.cfg.DuplicateDistance, req.PaymentID)
		if err != nil {
			log.Warn("hash index lookup failed", observability.Error("err", err))
			return nil
		}
		if found {
			imgDup, dupOf, dupDist = true, match.PaymentID, match.Distance
		}
		return nil
	})

	g.Go(func() error {
		start := v.now()
		octx, cancel := context.WithTimeout(gctx, v.cfg.OCRTimeout)
		defer cancel()

		res, err := v.extractor.Extract(octx, req.Image)
		v.metrics.Timing(observability.MetricOCRTime, v.now().Sub(start))
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded) && gctx.Err() == nil:
			// Engine too slow for this image: same treatment as no
			// legible text.
			illegible = true
			return nil
		case gctx.Err() != nil:
			return gctx.Err()
		default:
			log.Error("ocr failed", observability.Error("err", err))
			ocrFatal = true
			return nil
		}
		ocrRes = res
		v.metrics.Count(observability.MetricWordCount, res.WordCount)

		if len(strings.TrimSpace(res.Text)) < v.cfg.MinLegibleChars {
			illegible = true
			return nil
		}

		cstart := v.now()
		cr := v.consistency.Analyze(res.Words)
		consRes = &cr
		v.metrics.Timing(observability.MetricConsistencyTime, v.now().Sub(cstart))

		br := v.bank.Validate(res.Text)
		bankRes = &br
		extracted = v.fields.Extract(res.Text)

		if extracted.Reference != "" && v.history != nil {
			used, err := v.history.ReferenceInUse(gctx, extracted.Reference, req.PaymentID)
			if err != nil {
				log.Warn("reference lookup failed", observability.Error("err", err))
			} else {
				refDup = used
			}
		}
		return nil
	})

	g.Go(func() error {
		start := v.now()
		defer func() { v.metrics.Timing(observability.MetricRiskTime, v.now().Sub(start)) }()
		if v.history == nil {
			profile = v.risk.Score(nil, req.ReservationCreatedAt)
			return nil
		}
		past, err := v.history.ForSubmitter(gctx, req.SubmitterID)
		if err != nil {
			log.Warn("history lookup failed", observability.Error("err", err))
			profile = risk.Profile{Tier: risk.TierLow, Score: 0, Factors: []string{"payment history unavailable"}}
			return nil
		}
		profile = v.risk.Score(past, req.ReservationCreatedAt)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Decision{}, err
	}
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	if ocrFatal {
		d := v.processingFailure(req, "error processing the receipt image")
		d.Forensics = &forRes
		if hashOK {
			d.PHash = hash.String()
		}
		d.Risk = profile
		return v.finish(log, d), nil
	}

	if illegible {
		d := Decision{
			ID:                   uuid.NewString(),
			PaymentID:            req.PaymentID,
			Approved:             false,
			RequiresManualReview: true,
			Valid:                false,
			Confidence:           0,
			RejectionReason:      "no legible text could be extracted from the receipt",
			Text:                 ocrRes.Text,
			Forensics:            &forRes,
			Risk:                 profile,
			ImageDuplicate:       imgDup,
			DuplicateOf:          dupOf,
			EvaluatedAt:          v.now(),
		}
		if hashOK {
			d.PHash = hash.String()
		}
		return v.finish(log, d), nil
	}

	if imgDup {
		log.Info("near-duplicate image detected",
			observability.String("duplicate_of", dupOf),
			observability.Int("distance", dupDist))
	}

	dstart := v.now()
	out := v.engine.Evaluate(decision.Input{
		ExpectedAmount:     req.ExpectedAmount,
		OCRConfidence:      ocrRes.Confidence,
		Fields:             extracted,
		Forensics:          &forRes,
		Structure:          bankRes,
		Consistency:        consRes,
		ImageDuplicate:     imgDup,
		ReferenceDuplicate: refDup,
		Risk:               profile,
	})
	v.metrics.Timing(observability.MetricDecisionTime, v.now().Sub(dstart))

	d := Decision{
		ID:                   uuid.NewString(),
		PaymentID:            req.PaymentID,
		Approved:             out.Approved,
		RequiresManualReview: out.RequiresManualReview,
		Valid:                out.Valid,
		Confidence:           out.Confidence,
		RejectionReason:      out.RejectionReason,
		Text:                 ocrRes.Text,
		OCRConfidence:        ocrRes.Confidence,
		WordCount:            ocrRes.WordCount,
		ImageDuplicate:       imgDup,
		DuplicateOf:          dupOf,
		ReferenceDuplicate:   refDup,
		Fields:               extracted,
		Forensics:            &forRes,
		Structure:            bankRes,
		Consistency:          consRes,
		Risk:                 profile,
		Details:              out.Details,
		EvaluatedAt:          v.now(),
	}
	if hashOK {
		d.PHash = hash.String()
	}
	return v.finish(log, d), nil
}

// RecordManualReview logs a human reviewer's final verdict. The host feeds
// the verdict back into its payment store; future risk scoring picks it up
// from there.
func (v *Verifier) RecordManualReview(ctx context.Context, verdict ManualVerdict) {
	v.log.Info("manual review recorded",
		observability.String("payment_id", verdict.PaymentID),
		observability.String("reviewer_id", verdict.ReviewerID),
		observability.Bool("approved", verdict.Approved))
}

// processingFailure is the fallback decision when the pipeline itself broke:
// a processing failure is evidence for caution, so a human looks at it.
func (v *Verifier) processingFailure(req Request, reason string) Decision {
	return Decision{
		ID:                   uuid.NewString(),
		PaymentID:            req.PaymentID,
		Approved:             false,
		RequiresManualReview: true,
		Valid:                false,
		Confidence:           0,
		RejectionReason:      reason,
		EvaluatedAt:          v.now(),
	}
}

func (v *Verifier) finish(log observability.Logger, d Decision) Decision {
	if d.Approved {
		v.metrics.Count(observability.MetricApproved, 1)
	} else {
		v.metrics.Count(observability.MetricEscalated, 1)
	}
	log.Info("verification finished",
		observability.Bool("approved", d.Approved),
		observability.Bool("manual_review", d.RequiresManualReview),
		observability.Float64("confidence", d.Confidence))
	return d
}
