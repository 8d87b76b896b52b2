// Package bankcheck judges whether OCR text looks like a real bank transfer
// receipt: a known bank name, banking vocabulary, account-like number runs,
// and enough text overall.
package bankcheck

import (
	"math"
	"regexp"
	"strings"
)

// Config centralizes the structure scoring weights and vocabularies.
type Config struct {
	// KnownBanks is matched as lowercase substrings, first hit wins.
	KnownBanks []string
	// Keywords is the banking vocabulary counted as substring hits.
	Keywords []string

	BankScore float64
	// KeywordWeight is scaled by hits capped at KeywordCap.
	KeywordWeight float64
	KeywordCap    int
	AccountScore  float64

	RichTextWords   int
	RichTextScore   float64
	ModestTextWords int
	ModestTextScore float64

	// PlausibleKeywords is the keyword count that makes text plausible when
	// no bank name matched.
	PlausibleKeywords int
}

// DefaultConfig carries the Honduran and Central American bank roster the
// validator was built for.
func DefaultConfig() Config {
	return Config{
		KnownBanks: []string{
			"bac", "banco atlantida", "atlántida", "ficohsa", "banpais", "banpaís",
			"davivienda", "bancatlan", "bancatlán", "banco de occidente", "occidente",
			"banco promerica", "promerica", "promérica", "lafise", "banco lafise",
			"banco azteca", "azteca", "banco ficensa", "ficensa", "banrural",
			"banco industrial", "industrial", "banco de los trabajadores",
			"banhcafe", "banhcafé", "banco del pais", "banco del país",
			"tigo money", "tengo", "banco central",
		},
		Keywords: []string{
			"transferencia", "transaccion", "transacción", "comprobante", "recibo",
			"monto", "total", "cuenta", "banco", "referencia", "autorizacion",
			"autorización", "exitosa", "completada", "aprobada", "fecha", "hora",
			"destino", "origen", "beneficiario", "ordenante", "concepto",
			"numero", "número", "confirmacion", "confirmación", "deposito",
			"depósito", "abono", "pago", "lempiras", "lps", "hnl",
			"saldo", "disponible", "operacion", "operación", "sucursal",
		},

		BankScore:     0.30,
		KeywordWeight: 0.40,
		KeywordCap:    8,
		AccountScore:  0.15,

		RichTextWords:   30,
		RichTextScore:   0.15,
		ModestTextWords: 15,
		ModestTextScore: 0.08,

		PlausibleKeywords: 3,
	}
}

// Result describes how receipt-like a piece of OCR text is.
type Result struct {
	// Bank is the matched bank name, empty when none matched.
	Bank string `json:"bank,omitempty"`
	// Keywords lists the banking terms found in the text.
	Keywords []string `json:"keywords,omitempty"`
	// AccountPatterns counts account or card number shapes in the text.
	AccountPatterns int `json:"account_patterns"`
	// WordCount is the whitespace-separated token count of the full text.
	WordCount int     `json:"word_count"`
	Score     float64 `json:"score"`
	// Plausible means a bank matched or enough vocabulary was present.
	Plausible bool `json:"plausible"`
}

var accountPatterns = []*regexp.Regexp{
	// Card style groups of four.
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
	// Long bare digit runs.
	regexp.MustCompile(`\b\d{13,18}\b`),
	// Labeled account numbers, "Cuenta No: 123456".
	regexp.MustCompile(`(?i)(?:cuenta|cta)\.?\s*(?:no\.?\s*)?[:-]?\s*\d{6,18}`),
}

// Validator scores OCR text against the bank vocabulary.
type Validator struct {
	cfg Config
}

// NewValidator builds a validator; a zero config selects defaults wholesale.
func NewValidator(cfg Config) *Validator {
	if cfg.KeywordCap == 0 {
		cfg = DefaultConfig()
	}
	return &Validator{cfg: cfg}
}

// Validate scores the text. The same digit run may satisfy more than one
// account pattern; the count is informational, only its presence scores.
func (v *Validator) Validate(text string) Result {
	lower := strings.ToLower(text)
	res := Result{WordCount: len(strings.Fields(text))}

	for _, bank := range v.cfg.KnownBanks {
		if strings.Contains(lower, bank) {
			res.Bank = bank
			break
		}
	}

	for _, kw := range v.cfg.Keywords {
		if strings.Contains(lower, kw) {
			res.Keywords = append(res.Keywords, kw)
		}
	}

	for _, re := range accountPatterns {
		res.AccountPatterns += len(re.FindAllString(text, -1))
	}

	var score float64
	if res.Bank != "" {
		score += v.cfg.BankScore
	}
	score += v.cfg.KeywordWeight * math.Min(float64(len(res.Keywords))/float64(v.cfg.KeywordCap), 1)
	if res.AccountPatterns > 0 {
		score += v.cfg.AccountScore
	}
	switch {
	case res.WordCount >= v.cfg.RichTextWords:
		score += v.cfg.RichTextScore
	case res.WordCount >= v.cfg.ModestTextWords:
		score += v.cfg.ModestTextScore
	}

	res.Score = math.Round(score*100) / 100
	res.Plausible = res.Bank != "" || len(res.Keywords) >= v.cfg.PlausibleKeywords
	return res
}
