package observability

import "time"

// Logger is the logging contract consumed by the verification pipeline. Hosts
// adapt their own logging framework behind it; the zero-dependency default is
// NopLogger.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type float64Field struct {
	key string
	val float64
}

func (f float64Field) Key() string        { return f.key }
func (f float64Field) Value() interface{} { return f.val }

type boolField struct {
	key string
	val bool
}

func (f boolField) Key() string        { return f.key }
func (f boolField) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field          { return stringField{key, value} }
func Int(key string, value int) Field         { return intField{key, value} }
func Float64(key string, value float64) Field { return float64Field{key, value} }
func Bool(key string, value bool) Field       { return boolField{key, value} }
func Error(key string, err error) Field       { return errorField{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// Metrics is the instrumentation contract consumed by the pipeline. Hosts
// adapt statsd, Prometheus, or whatever they run behind it.
type Metrics interface {
	Timing(name string, d time.Duration)
	Count(name string, delta int)
}

type NopMetrics struct{}

func (NopMetrics) Timing(string, time.Duration) {}
func (NopMetrics) Count(string, int)            {}

// Standard metric names emitted around the pipeline stages.
const (
	MetricForensicsTime   = "receipt.forensics.duration"
	MetricOCRTime         = "receipt.ocr.duration"
	MetricConsistencyTime = "receipt.consistency.duration"
	MetricRiskTime        = "receipt.risk.duration"
	MetricDecisionTime    = "receipt.decision.duration"
	MetricWordCount       = "receipt.ocr.words"
	MetricApproved        = "receipt.decisions.approved"
	MetricEscalated       = "receipt.decisions.escalated"
)
