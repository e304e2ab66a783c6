package repositories

import "github.com/propsage/compval/internal/infrastructure/monitoring/logging"

// Logger is the minimal logging contract required by repository
// implementations.  It is satisfied by most structured-logging libraries;
// FieldLogger adapts the platform logger to it.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// FieldLogger bridges logging.Logger to the repository Logger contract.
type FieldLogger struct {
	L logging.Logger
}

func (f FieldLogger) Debug(msg string, kv ...interface{}) { f.L.Debug(msg, toFields(kv)...) }
func (f FieldLogger) Info(msg string, kv ...interface{})  { f.L.Info(msg, toFields(kv)...) }
func (f FieldLogger) Warn(msg string, kv ...interface{})  { f.L.Warn(msg, toFields(kv)...) }
func (f FieldLogger) Error(msg string, kv ...interface{}) { f.L.Error(msg, toFields(kv)...) }

func toFields(kv []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, logging.Any(key, kv[i+1]))
	}
	return fields
}
