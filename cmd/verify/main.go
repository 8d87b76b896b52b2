// Command verify runs the receipt verification pipeline over a single image
// and prints the decision as JSON. It is the manual-testing harness for the
// library; production hosts embed the verify package directly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lempira/comprobante/observability"
	"github.com/lempira/comprobante/ocr/tesseract"
	"github.com/lempira/comprobante/verify"
)

type options struct {
	imagePath   string
	amount      float64
	paymentID   string
	submitterID string
	languages   string
	timeout     time.Duration
	clientView  bool
	verbose     bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: go run ./cmd/verify [flags] <image>\n")
		flag.PrintDefaults()
	}
	flag.Float64Var(&opts.amount, "amount", 0, "Expected payment amount")
	flag.StringVar(&opts.paymentID, "payment", "cli-payment", "Payment id the receipt belongs to")
	flag.StringVar(&opts.submitterID, "submitter", "cli-user", "Submitter id for risk scoring")
	flag.StringVar(&opts.languages, "lang", "spa,eng", "Comma-separated Tesseract languages")
	flag.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Overall processing deadline")
	flag.BoolVar(&opts.clientView, "client", false, "Print the submitter-facing projection instead of the full decision")
	flag.BoolVar(&opts.verbose, "v", false, "Log pipeline progress to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing image path")
	}
	opts.imagePath = flag.Arg(0)
	if opts.amount <= 0 {
		return options{}, fmt.Errorf("-amount must be positive")
	}
	return opts, nil
}

func run(opts options) error {
	img, err := os.ReadFile(opts.imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	engine := tesseract.New(tesseract.WithLanguages(strings.Split(opts.languages, ",")...))
	defer engine.Close()

	var vopts []verify.Option
	if opts.verbose {
		vopts = append(vopts, verify.WithLogger(stderrLogger{}))
	}
	v := verify.New(engine, verify.NewMemoryHashIndex(), verify.NewMemoryHistory(), verify.DefaultConfig(), vopts...)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	decision, err := v.Verify(ctx, verify.Request{
		Image:          img,
		Mimetype:       mimetypeFor(opts.imagePath),
		ExpectedAmount: opts.amount,
		PaymentID:      opts.paymentID,
		SubmitterID:    opts.submitterID,
	})
	if err != nil {
		return fmt.Errorf("verify receipt: %w", err)
	}

	var out interface{} = decision
	if opts.clientView {
		out = decision.ClientView()
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	fmt.Printf("%s\n", data)
	return nil
}

func mimetypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// stderrLogger is a minimal observability.Logger for the CLI.
type stderrLogger struct {
	fields []observability.Field
}

func (l stderrLogger) Debug(msg string, fields ...observability.Field) { l.emit("DEBUG", msg, fields) }
func (l stderrLogger) Info(msg string, fields ...observability.Field)  { l.emit("INFO", msg, fields) }
func (l stderrLogger) Warn(msg string, fields ...observability.Field)  { l.emit("WARN", msg, fields) }
func (l stderrLogger) Error(msg string, fields ...observability.Field) { l.emit("ERROR", msg, fields) }

func (l stderrLogger) With(fields ...observability.Field) observability.Logger {
	return stderrLogger{fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}

func (l stderrLogger) emit(level, msg string, fields []observability.Field) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", time.Now().Format(time.RFC3339), level, msg)
	for _, f := range l.fields {
		fmt.Fprintf(&b, " %s=%v", f.Key(), f.Value())
	}
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key(), f.Value())
	}
	fmt.Fprintln(os.Stderr, b.String())
}
