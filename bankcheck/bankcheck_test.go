package bankcheck

import "testing"

const receiptText = `BANCO ATLANTIDA
Comprobante de transferencia exitosa
Monto: L 1,250.00
Cuenta destino: 1234567890123
Referencia: 98765432
Fecha: 07/02/2026 Hora: 10:22
Beneficiario: Restaurante El Lago
Concepto: pago de reservacion
Operacion completada con exito desde su banca en linea
Gracias por utilizar nuestros servicios electronicos`

func TestValidateFullReceipt(t *testing.T) {
	v := NewValidator(Config{})
	res := v.Validate(receiptText)

	if res.Bank == "" {
		t.Fatalf("no bank detected in %q", receiptText)
	}
	if len(res.Keywords) < 8 {
		t.Fatalf("keywords = %v, want at least 8", res.Keywords)
	}
	if res.AccountPatterns < 1 {
		t.Fatalf("account patterns = %d, want >= 1", res.AccountPatterns)
	}
	if res.WordCount < 30 {
		t.Fatalf("word count = %d, want >= 30", res.WordCount)
	}
	if res.Score != 1.0 {
		t.Fatalf("score = %v, want 1.0", res.Score)
	}
	if !res.Plausible {
		t.Fatalf("full receipt judged implausible")
	}
}

func TestValidateUnrelatedText(t *testing.T) {
	v := NewValidator(DefaultConfig())
	res := v.Validate("tres manzanas dos peras un litro de leche y pan")

	if res.Bank != "" {
		t.Fatalf("bank = %q, want none", res.Bank)
	}
	if len(res.Keywords) != 0 {
		t.Fatalf("keywords = %v, want none", res.Keywords)
	}
	if res.Score != 0 {
		t.Fatalf("score = %v, want 0", res.Score)
	}
	if res.Plausible {
		t.Fatalf("shopping list judged plausible")
	}
}

func TestValidateKeywordsWithoutBank(t *testing.T) {
	v := NewValidator(DefaultConfig())
	res := v.Validate("transferencia referencia monto")

	if res.Bank != "" {
		t.Fatalf("bank = %q, want none", res.Bank)
	}
	if len(res.Keywords) != 3 {
		t.Fatalf("keywords = %v, want 3", res.Keywords)
	}
	// 0.40 * 3/8 with no other credit.
	if res.Score != 0.15 {
		t.Fatalf("score = %v, want 0.15", res.Score)
	}
	if !res.Plausible {
		t.Fatalf("three keywords should make the text plausible")
	}
}

func TestValidateBankNameMatch(t *testing.T) {
	v := NewValidator(DefaultConfig())
	res := v.Validate("transaccion aprobada por Ficohsa")
	if res.Bank != "ficohsa" {
		t.Fatalf("bank = %q, want ficohsa", res.Bank)
	}
}

func TestAccountPatternShapes(t *testing.T) {
	v := NewValidator(DefaultConfig())

	cases := []struct {
		text string
		want int
	}{
		{"cuenta: 654321 y tarjeta 1234 5678 9012 3456", 2},
		{"referencia 123456789012", 0},   // 12 digits, too short for a bare run
		{"deposito a 1234567890123", 1},  // 13 contiguous digits
		{"Cta. No. 87654321", 1},         // labeled account
		{"1234567890123456", 2},          // 16 digits hit both card and run shapes
	}
	for _, tc := range cases {
		if got := v.Validate(tc.text).AccountPatterns; got != tc.want {
			t.Errorf("Validate(%q).AccountPatterns = %d, want %d", tc.text, got, tc.want)
		}
	}
}
