package fields

import (
	"testing"
	"time"
)

func dateStrings(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format("2006-01-02")
	}
	return out
}

func containsDate(dates []time.Time, want string) bool {
	for _, d := range dates {
		if d.Format("2006-01-02") == want {
			return true
		}
	}
	return false
}

func TestAmounts(t *testing.T) {
	e := NewExtractor(Config{})

	cases := []struct {
		text string
		want []float64
	}{
		{"Monto: L 1,250.00", []float64{1250}},
		{"LPS 99.95 pagado", []float64{99.95}},
		{"Total 350.00 propina 50.00", []float64{350, 50}},
		{"saldo 0.00 y 1500000.00", nil},           // out of bounds both ways
		{"referencia 123456 sin decimales", nil},   // amounts need decimals
		{"$ 1,000,000.00 exacto", []float64{1000000}},
	}
	for _, tc := range cases {
		got := e.Amounts(tc.text)
		if len(got) != len(tc.want) {
			t.Errorf("Amounts(%q) = %v, want %v", tc.text, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("Amounts(%q) = %v, want %v", tc.text, got, tc.want)
				break
			}
		}
	}
}

func TestAmountsDeduplicated(t *testing.T) {
	e := NewExtractor(DefaultConfig())
	got := e.Amounts("L 1,250.00 total 1,250.00")
	if len(got) != 1 || got[0] != 1250 {
		t.Fatalf("Amounts() = %v, want [1250]", got)
	}
}

func TestDatesNumericFormats(t *testing.T) {
	e := NewExtractor(DefaultConfig())

	cases := []struct {
		text string
		want string
	}{
		{"fecha: 07/02/2026", "2026-02-07"},
		{"07/02/26", "2026-02-07"},
		{"07-02-2026 10:22", "2026-02-07"},
		{"2026-02-07T10:22:00", "2026-02-07"},
		{"07.02.2026", "2026-02-07"},
	}
	for _, tc := range cases {
		got := e.Dates(tc.text)
		if !containsDate(got, tc.want) {
			t.Errorf("Dates(%q) = %v, want %v present", tc.text, dateStrings(got), tc.want)
		}
	}
}

func TestDatesTextualFormats(t *testing.T) {
	e := NewExtractor(DefaultConfig())

	cases := []struct {
		text string
		want string
	}{
		{"7 de febrero de 2026", "2026-02-07"},
		{"7 de febrero del 2026", "2026-02-07"},
		{"February 7, 2026", "2026-02-07"},
		{"15-ene-2026", "2026-01-15"},
		{"3 dic 2025", "2025-12-03"},
	}
	for _, tc := range cases {
		got := e.Dates(tc.text)
		if !containsDate(got, tc.want) {
			t.Errorf("Dates(%q) = %v, want %v present", tc.text, dateStrings(got), tc.want)
		}
	}
}

func TestDatesOCRConfusions(t *testing.T) {
	e := NewExtractor(DefaultConfig())

	cases := []struct {
		text string
		want string
	}{
		{"O7/O2/2026", "2026-02-07"},          // O read for 0
		{"0 7/02/2026", "2026-02-07"},         // split digit run
		{"07 / 02 / 2026", "2026-02-07"},      // spaced separators
		{"07–02–2026", "2026-02-07"},          // unicode dashes
		{"l1/12/2025", "2025-12-11"},          // l read for 1
	}
	for _, tc := range cases {
		got := e.Dates(tc.text)
		if !containsDate(got, tc.want) {
			t.Errorf("Dates(%q) = %v, want %v present", tc.text, dateStrings(got), tc.want)
		}
	}
}

func TestDatesRejectInvalid(t *testing.T) {
	e := NewExtractor(DefaultConfig())

	for _, text := range []string{
		"31/02/2026",   // February has no 31st
		"07/13/2026",   // month out of range
		"07/02/2050",   // beyond the plausible year window
		"01/01/99",     // expands to 1999, before the window
		"sin fecha alguna",
	} {
		if got := e.Dates(text); len(got) != 0 {
			t.Errorf("Dates(%q) = %v, want none", text, dateStrings(got))
		}
	}
}

func TestDatesCompactFallback(t *testing.T) {
	e := NewExtractor(DefaultConfig())
	got := e.Dates("comprobante 07022026 banco")
	if !containsDate(got, "2026-02-07") {
		t.Fatalf("Dates() = %v, want 2026-02-07", dateStrings(got))
	}

	// The compact pattern must not run when a separated date already matched.
	got = e.Dates("07/02/2026 y 08031989 ruido")
	if len(got) != 1 || !containsDate(got, "2026-02-07") {
		t.Fatalf("Dates() = %v, want exactly 2026-02-07", dateStrings(got))
	}
}

func TestReference(t *testing.T) {
	e := NewExtractor(DefaultConfig())

	cases := []struct {
		text string
		want string
	}{
		{"Referencia: ABC-123456", "ABC-123456"},
		{"No. Ref: 98765432", "98765432"},
		{"Transaccion # 55443322", "55443322"},
		{"Autorizacion: XYZ99881", "XYZ99881"},
		{"pago TRF-20260207 exitoso", "TRF-20260207"},
		{"sin codigo util", ""},
	}
	for _, tc := range cases {
		if got := e.Reference(tc.text); got != tc.want {
			t.Errorf("Reference(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestExtractCombined(t *testing.T) {
	e := NewExtractor(DefaultConfig())
	f := e.Extract("Monto: L 1,250.00\nFecha: 07/02/2026\nReferencia: ABC-123456")
	if len(f.Amounts) != 1 || f.Amounts[0] != 1250 {
		t.Fatalf("amounts = %v", f.Amounts)
	}
	if !containsDate(f.Dates, "2026-02-07") {
		t.Fatalf("dates = %v", dateStrings(f.Dates))
	}
	if f.Reference != "ABC-123456" {
		t.Fatalf("reference = %q", f.Reference)
	}
}
