// Package tesseract provides the default recognition engine, backed by a
// pool of long-lived gosseract clients. Recognition engines are expensive to
// start, so clients are created lazily, reused across requests, and kept
// alive until Close.
package tesseract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/lempira/comprobante/ocr"
)

// ErrClosed is returned by Recognize after Close.
var ErrClosed = errors.New("tesseract: engine closed")

const defaultMaxClients = 2

// Option configures the engine.
type Option func(*Engine)

// WithLanguages sets the trained-data languages. Default is Spanish plus
// English, matching the receipts this pipeline was built for.
func WithLanguages(langs ...string) Option {
	return func(e *Engine) { e.langs = append([]string(nil), langs...) }
}

// WithMaxClients bounds the number of concurrently running Tesseract
// clients. Additional requests wait for a free client.
func WithMaxClients(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.max = n
		}
	}
}

// WithVariable passes an engine-specific knob (e.g. tessedit_pageseg_mode)
// to every client.
func WithVariable(name, value string) Option {
	return func(e *Engine) { e.vars[name] = value }
}

// Engine implements ocr.Engine on top of gosseract. Safe for concurrent use:
// each request checks a client out of the pool and returns it when done.
type Engine struct {
	langs []string
	vars  map[string]string
	max   int

	mu      sync.Mutex
	created int
	closed  bool
	idle    chan *gosseract.Client
}

// New constructs the engine. No client is started until the first Recognize
// call.
func New(opts ...Option) *Engine {
	e := &Engine{
		langs: []string{"spa", "eng"},
		vars:  map[string]string{},
		max:   defaultMaxClients,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.idle = make(chan *gosseract.Client, e.max)
	return e
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs OCR on one encoded image. If ctx expires while Tesseract is
// working, the call returns immediately with ctx.Err() and the client is
// returned to the pool once the recognition finishes in the background; the
// worker is never leaked or killed mid-run.
func (e *Engine) Recognize(ctx context.Context, image []byte) (ocr.Result, error) {
	client, err := e.checkout(ctx)
	if err != nil {
		return ocr.Result{}, err
	}

	type outcome struct {
		res ocr.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, rerr := recognizeWithClient(client, image)
		done <- outcome{res, rerr}
	}()

	select {
	case out := <-done:
		e.checkin(client)
		return out.res, out.err
	case <-ctx.Done():
		go func() {
			<-done
			e.checkin(client)
		}()
		return ocr.Result{}, ctx.Err()
	}
}

// Close shuts down idle clients and rejects further requests. Callers should
// wait for in-flight recognitions before closing the process.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	var first error
	for {
		select {
		case c := <-e.idle:
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		default:
			return first
		}
	}
}

func (e *Engine) checkout(ctx context.Context) (*gosseract.Client, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	select {
	case c := <-e.idle:
		e.mu.Unlock()
		return c, nil
	default:
	}
	if e.created < e.max {
		e.created++
		e.mu.Unlock()
		c, err := e.newClient()
		if err != nil {
			e.mu.Lock()
			e.created--
			e.mu.Unlock()
			return nil, err
		}
		return c, nil
	}
	e.mu.Unlock()

	select {
	case c := <-e.idle:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) checkin(c *gosseract.Client) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		c.Close()
		return
	}
	select {
	case e.idle <- c:
	default:
		c.Close()
	}
}

func (e *Engine) newClient() (*gosseract.Client, error) {
	c := gosseract.NewClient()
	if len(e.langs) > 0 {
		if err := c.SetLanguage(e.langs...); err != nil {
			c.Close()
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	for k, v := range e.vars {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			c.Close()
			return nil, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	return c, nil
}

func recognizeWithClient(c *gosseract.Client, image []byte) (ocr.Result, error) {
	if err := c.SetImageFromBytes(image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	plain := strings.TrimSpace(text)

	words, avgConf := extractWords(c)
	return ocr.Result{
		Text:       plain,
		Confidence: math.Round(avgConf) / 100,
		WordCount:  ocr.CountWords(plain),
		Words:      words,
	}, nil
}

// extractWords pulls word-level boxes and confidences. Box extraction
// failing is not fatal: downstream consistency analysis simply gets no
// geometry to work with.
func extractWords(c *gosseract.Client) ([]ocr.Word, float64) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil, 0
	}
	words := make([]ocr.Word, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
		words = append(words, ocr.Word{
			Text:       b.Word,
			Confidence: b.Confidence,
			Box: ocr.Box{
				X0: b.Box.Min.X,
				Y0: b.Box.Min.Y,
				X1: b.Box.Max.X,
				Y1: b.Box.Max.Y,
			},
		})
	}
	return words, sum / float64(len(words))
}
