package stamper

// Logger receives diagnostic events from the engine. Implementations must be
// safe for concurrent use.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is a structured key/value pair attached to a log event.
type Field struct {
	Key   string
	Value any
}

// String returns a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int returns an integer field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Uint64 returns an unsigned integer field.
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

// Err returns an error field keyed "error".
func Err(err error) Field { return Field{Key: "error", Value: err} }

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
