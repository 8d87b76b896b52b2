package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ensureTesseractAvailable checks that the tesseract binary is reachable.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func renderText(t *testing.T, lines []string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 40+30*len(lines)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		d.Dot = fixed.P(20, 30+30*i)
		d.DrawString(line)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestEngineRecognize(t *testing.T) {
	ensureTesseractAvailable(t)

	eng := New(WithLanguages("eng"))
	defer eng.Close()

	res, err := eng.Recognize(context.Background(), renderText(t, []string{"Transfer 1250.00"}))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	got := strings.ToLower(res.Text)
	if !strings.Contains(got, "transfer") {
		t.Fatalf("unexpected OCR output: %q", res.Text)
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		t.Fatalf("confidence = %v, want [0,1]", res.Confidence)
	}
	if len(res.Words) == 0 {
		t.Fatalf("expected word-level boxes")
	}
	for _, w := range res.Words {
		if w.Confidence < 0 || w.Confidence > 100 {
			t.Fatalf("word confidence = %v, want [0,100]", w.Confidence)
		}
	}
}

func TestEngineConcurrentUse(t *testing.T) {
	ensureTesseractAvailable(t)

	eng := New(WithLanguages("eng"), WithMaxClients(2))
	defer eng.Close()

	img := renderText(t, []string{"Banco Atlantida", "Referencia ABC-123456"})
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.Recognize(context.Background(), img); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Recognize() error = %v", err)
	}
}

func TestEngineContextTimeout(t *testing.T) {
	ensureTesseractAvailable(t)

	eng := New(WithLanguages("eng"), WithMaxClients(1))
	defer func() {
		// Give the discarded background recognition time to check the
		// client back in before closing.
		time.Sleep(500 * time.Millisecond)
		eng.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()

	_, err := eng.Recognize(ctx, renderText(t, []string{"timeout"}))
	if err == nil {
		t.Fatalf("expected context error")
	}
}

func TestEngineClosedRejectsRequests(t *testing.T) {
	eng := New()
	if err := eng.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := eng.Recognize(context.Background(), nil); err != ErrClosed {
		t.Fatalf("error = %v, want ErrClosed", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
