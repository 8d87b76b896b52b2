// Package fields pulls the structured payment data out of raw OCR text:
// candidate amounts, dates in many receipt formats, and the transfer
// reference code. Extraction is best effort; the decision layer scores
// whatever subset was found.
package fields

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config bounds what extracted values are accepted as plausible.
type Config struct {
	MinAmount float64
	MaxAmount float64
	// MinYear and MaxYear reject dates OCR hallucinated from account
	// numbers or amounts.
	MinYear int
	MaxYear int
}

// DefaultConfig returns the calibrated bounds.
func DefaultConfig() Config {
	return Config{
		MinAmount: 0.01,
		MaxAmount: 1_000_000,
		MinYear:   2020,
		MaxYear:   2035,
	}
}

// Fields is everything the extractor recovered from one receipt text.
type Fields struct {
	// Amounts are the deduplicated monetary values, in extraction order.
	Amounts []float64 `json:"amounts,omitempty"`
	// Dates are the deduplicated calendar dates, midnight UTC.
	Dates []time.Time `json:"dates,omitempty"`
	// Reference is the transfer reference code, empty when none matched.
	Reference string `json:"reference,omitempty"`
}

// Extractor recovers amounts, dates, and references from OCR text.
type Extractor struct {
	cfg Config
}

// NewExtractor builds an extractor; a zero config selects defaults.
func NewExtractor(cfg Config) *Extractor {
	if cfg.MaxAmount == 0 {
		cfg = DefaultConfig()
	}
	return &Extractor{cfg: cfg}
}

// Extract runs all three extractors over the text.
func (e *Extractor) Extract(text string) Fields {
	return Fields{
		Amounts:   e.Amounts(text),
		Dates:     e.Dates(text),
		Reference: e.Reference(text),
	}
}

var amountPatterns = []*regexp.Regexp{
	// Currency-prefixed: L 1,500.00 / LPS 1500.0 / $ 99.95.
	regexp.MustCompile(`(?i)(?:L\.?|LPS|HNL|\$|USD)\s*(\d{1,3}(?:,\d{3})*(?:\.\d{1,2}))`),
	// Grouped thousands with two decimals.
	regexp.MustCompile(`(\d{1,3}(?:,\d{3})*\.\d{2})\b`),
	// Bare decimals.
	regexp.MustCompile(`(\d+\.\d{2})\b`),
}

// Amounts extracts every plausible monetary value, deduplicated, in the
// order the patterns found them.
func (e *Extractor) Amounts(text string) []float64 {
	var amounts []float64
	seen := map[float64]bool{}
	for _, re := range amountPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			raw := strings.ReplaceAll(m[1], ",", "")
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < e.cfg.MinAmount || v > e.cfg.MaxAmount || seen[v] {
				continue
			}
			seen[v] = true
			amounts = append(amounts, v)
		}
	}
	return amounts
}

// months maps Spanish and English month names, full and abbreviated, to
// their number.
var months = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6,
	"julio": 7, "agosto": 8, "septiembre": 9, "octubre": 10, "noviembre": 11, "diciembre": 12,
	"ene": 1, "abr": 4, "ago": 8, "dic": 12,
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,
}

// OCR confusion fixes applied before numeric date matching.
var dateNormalizations = []struct {
	re   *regexp.Regexp
	repl string
}{
	// O confused with 0 next to digits.
	{regexp.MustCompile(`(\d)O`), "${1}0"},
	{regexp.MustCompile(`O(\d)`), "0$1"},
	{regexp.MustCompile(`(\d)o(\d)`), "${1}0$2"},
	// l, I and | confused with 1.
	{regexp.MustCompile(`(\d)[lI|](\d)`), "${1}1$2"},
	{regexp.MustCompile(`[lI|](\d{1,2}[/.\-])`), "1$1"},
	// Spaces split into digit runs: "0 7/02/2026".
	{regexp.MustCompile(`(\d)\s+(\d)(\s*[/.\-]\s*\d)`), "$1$2$3"},
	{regexp.MustCompile(`(\d\s*[/.\-]\s*)(\d)\s+(\d)`), "$1$2$3"},
	// Unicode dashes and slashes.
	{regexp.MustCompile(`[–—]`), "-"},
	{regexp.MustCompile(`[⁄∕／]`), "/"},
	// Spaces around separators.
	{regexp.MustCompile(`(\d)\s*([/.\-])\s*(\d)`), "$1$2$3"},
}

func normalizeForDates(text string) string {
	for _, n := range dateNormalizations {
		text = n.re.ReplaceAllString(text, n.repl)
	}
	return text
}

var (
	dmyFull    = regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})`)
	dmyShort   = regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2})\b`)
	isoDate    = regexp.MustCompile(`(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})`)
	spanishDe  = regexp.MustCompile(`(?i)(\d{1,2})\s+de\s+(\w+)\s+(?:de\s+|del?\s+)?(\d{2,4})`)
	dayMonth   = regexp.MustCompile(`(?i)(\d{1,2})[\s/\-]([a-záéíóúñ]{3,10})[\s/\-.,]?\s*(\d{2,4})`)
	monthDay   = regexp.MustCompile(`(?i)([a-z]{3,10})\s+(\d{1,2})[,.]?\s+(\d{2,4})`)
	dayMonAbbr = regexp.MustCompile(`(?i)(\d{1,2})[/\-]([a-záéíóúñ]{3,4})[/\-](\d{2,4})`)
	dateLabel  = regexp.MustCompile(`(?i)(?:fecha|date|fcha|fec)\s*[:\-=]?\s*(.{5,30})`)
	dateInner  = regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})`)
	compact    = regexp.MustCompile(`(\d{2})(\d{2})(\d{4})`)
)

// Dates extracts calendar dates from the text. Numeric patterns run over the
// OCR-normalized text; textual month patterns over the original. When
// nothing matches, a contextual scan near the date label and then a compact
// DDMMYYYY pattern serve as fallbacks.
func (e *Extractor) Dates(text string) []time.Time {
	norm := normalizeForDates(text)
	var dates []time.Time
	seen := map[time.Time]bool{}

	add := func(day, month, year int) {
		if year < 100 {
			if year <= 50 {
				year += 2000
			} else {
				year += 1900
			}
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return
		}
		if year < e.cfg.MinYear || year > e.cfg.MaxYear {
			return
		}
		// Last day of the month, so 31/02 and friends are rejected.
		if day > time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day() {
			return
		}
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	addMatch := func(m []string, dayIdx, monthIdx, yearIdx int) {
		day, _ := strconv.Atoi(m[dayIdx])
		year, _ := strconv.Atoi(m[yearIdx])
		add(day, atoiMonth(m[monthIdx]), year)
	}

	for _, m := range dmyFull.FindAllStringSubmatch(norm, -1) {
		addMatch(m, 1, 2, 3)
	}
	for _, m := range dmyShort.FindAllStringSubmatch(norm, -1) {
		addMatch(m, 1, 2, 3)
	}
	for _, m := range isoDate.FindAllStringSubmatch(norm, -1) {
		addMatch(m, 3, 2, 1)
	}

	for _, m := range spanishDe.FindAllStringSubmatch(text, -1) {
		if mo := months[strings.ToLower(m[2])]; mo > 0 {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			add(day, mo, year)
		}
	}
	for _, m := range dayMonth.FindAllStringSubmatch(text, -1) {
		if mo := months[strings.ToLower(m[2])]; mo > 0 {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			add(day, mo, year)
		}
	}
	for _, m := range monthDay.FindAllStringSubmatch(text, -1) {
		if mo := months[strings.ToLower(m[1])]; mo > 0 {
			day, _ := strconv.Atoi(m[2])
			year, _ := strconv.Atoi(m[3])
			add(day, mo, year)
		}
	}
	for _, m := range dayMonAbbr.FindAllStringSubmatch(text, -1) {
		if mo := months[strings.ToLower(m[2])]; mo > 0 {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			add(day, mo, year)
		}
	}

	if len(dates) == 0 {
		for _, m := range dateLabel.FindAllStringSubmatch(norm, -1) {
			if sub := dateInner.FindStringSubmatch(m[1]); sub != nil {
				addMatch(sub, 1, 2, 3)
			}
		}
	}
	if len(dates) == 0 {
		for _, m := range compact.FindAllStringSubmatch(norm, -1) {
			addMatch(m, 1, 2, 3)
		}
	}
	return dates
}

// atoiMonth parses a numeric month capture.
func atoiMonth(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:ref(?:erencia)?|no\.?\s*ref(?:erencia)?|reference)\s*[:\-#]?\s*([A-Z0-9\-]{4,25})`),
	regexp.MustCompile(`(?i)(?:trans(?:acci[oó]n)?|no\.?\s*trans(?:acci[oó]n)?|transaction)\s*[:\-#]?\s*([A-Z0-9\-]{4,25})`),
	regexp.MustCompile(`(?i)(?:confirmaci[oó]n|confirmation|comprobante)\s*[:\-#]?\s*([A-Z0-9\-]{4,25})`),
	regexp.MustCompile(`(?i)(?:autorizaci[oó]n|authorization|auth)\s*[:\-#]?\s*([A-Z0-9\-]{4,25})`),
	// Bare code shape: letters then digits, "TRF-20260207".
	regexp.MustCompile(`\b([A-Z]{2,4}-?\d{6,15})\b`),
}

// Reference extracts the transfer reference code. Labeled codes win over the
// bare letters-digits shape; the first pattern to match decides.
func (e *Extractor) Reference(text string) string {
	for _, re := range referencePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
