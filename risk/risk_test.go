package risk

import (
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
}

func newTestScorer() *Scorer {
	return NewScorer(Config{}, WithNow(fixedNow))
}

func TestNoHistoryIsLowRisk(t *testing.T) {
	s := newTestScorer()
	p := s.Score(nil, time.Time{})
	if p.Tier != TierLow || p.Score != 0 {
		t.Fatalf("profile = %+v, want low/0", p)
	}
	if len(p.Factors) != 1 || !strings.Contains(p.Factors[0], "no payment history") {
		t.Fatalf("factors = %v, want explicit no-history factor", p.Factors)
	}
}

func TestCleanHistory(t *testing.T) {
	s := newTestScorer()
	history := []PastPayment{
		{ID: "a", Status: StatusCompleted, VerificationAttempts: 1},
		{ID: "b", Status: StatusCompleted, VerificationAttempts: 1},
	}
	p := s.Score(history, time.Time{})
	if p.Tier != TierLow || p.Score != 0 {
		t.Fatalf("profile = %+v, want low/0", p)
	}
	if len(p.Factors) != 1 || p.Factors[0] != "clean payment history" {
		t.Fatalf("factors = %v", p.Factors)
	}
}

func TestFailedPaymentTiers(t *testing.T) {
	s := newTestScorer()

	one := []PastPayment{{Status: StatusFailed}}
	if p := s.Score(one, time.Time{}); p.Score != 0.15 || p.Tier != TierLow {
		t.Fatalf("one failure: %+v, want score 0.15 tier low", p)
	}

	three := []PastPayment{{Status: StatusFailed}, {Status: StatusFailed}, {Status: StatusFailed}}
	if p := s.Score(three, time.Time{}); p.Score != 0.35 || p.Tier != TierMedium {
		t.Fatalf("three failures: %+v, want score 0.35 tier medium", p)
	}
}

func TestRetriedPaymentsOutweighTotalAttempts(t *testing.T) {
	s := newTestScorer()

	// Two heavily retried payments trigger the stronger factor even though
	// the total would also qualify.
	history := []PastPayment{
		{Status: StatusCompleted, VerificationAttempts: 3},
		{Status: StatusCompleted, VerificationAttempts: 4},
	}
	p := s.Score(history, time.Time{})
	if p.Score != 0.20 {
		t.Fatalf("score = %v, want 0.20 (%v)", p.Score, p.Factors)
	}

	// Many payments with few attempts each hit only the total factor.
	spread := []PastPayment{
		{Status: StatusCompleted, VerificationAttempts: 2},
		{Status: StatusCompleted, VerificationAttempts: 2},
		{Status: StatusCompleted, VerificationAttempts: 2},
	}
	p = s.Score(spread, time.Time{})
	if p.Score != 0.10 {
		t.Fatalf("score = %v, want 0.10 (%v)", p.Score, p.Factors)
	}
}

func TestSuspiciousAndDuplicateHistory(t *testing.T) {
	s := newTestScorer()

	history := []PastPayment{
		{Status: StatusCompleted, Suspicious: true},
		{Status: StatusCompleted, Suspicious: true},
		{Status: StatusCompleted, ReferenceDuplicate: true},
	}
	p := s.Score(history, time.Time{})
	// Suspicious images (0.25) + duplicated reference (0.30).
	if p.Score != 0.55 || p.Tier != TierHigh {
		t.Fatalf("profile = %+v, want score 0.55 tier high", p)
	}
}

func TestSubmissionSpeed(t *testing.T) {
	s := newTestScorer()
	history := []PastPayment{{Status: StatusCompleted, VerificationAttempts: 1}}

	// 10 seconds after reservation creation: no human completes a real
	// transfer that fast.
	created := fixedNow().Add(-10 * time.Second)
	if p := s.Score(history, created); p.Score != 0.25 || p.Tier != TierMedium {
		t.Fatalf("10s: %+v, want score 0.25 tier medium", p)
	}

	created = fixedNow().Add(-90 * time.Second)
	if p := s.Score(history, created); p.Score != 0.10 {
		t.Fatalf("90s: %+v, want score 0.10", p)
	}

	created = fixedNow().Add(-time.Hour)
	if p := s.Score(history, created); p.Score != 0 {
		t.Fatalf("1h: %+v, want score 0", p)
	}
}

func TestScoreClampedAndTiered(t *testing.T) {
	s := newTestScorer()

	history := []PastPayment{
		{Status: StatusFailed, VerificationAttempts: 3, Suspicious: true, ReferenceDuplicate: true},
		{Status: StatusFailed, VerificationAttempts: 4, Suspicious: true, ReferenceDuplicate: true},
		{Status: StatusFailed, VerificationAttempts: 5, Suspicious: true},
		{Status: StatusInReview},
		{Status: StatusInReview},
	}
	p := s.Score(history, fixedNow().Add(-5*time.Second))
	if p.Score != 1.0 || p.Tier != TierHigh {
		t.Fatalf("profile = %+v, want score clamped to 1.0 tier high", p)
	}
}
