package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.RWMutex
	log = zap.NewNop().Sugar()
)

// Init builds the process logger. "production" gets JSON output at info
// level, anything else gets the colored development encoder at debug level.
func Init(env string) {
	var (
		base *zap.Logger
		err  error
	)
	if env == "production" {
		base, err = zap.NewProduction()
	} else {
		base, err = zap.NewDevelopment()
	}
	if err != nil {
		base = zap.NewExample()
	}

	mu.Lock()
	log = base.WithOptions(zap.AddCallerSkip(1)).Sugar()
	mu.Unlock()
}

// L returns the underlying zap logger.
func L() *zap.Logger {
	return current().Desugar()
}

func Sync() {
	_ = current().Sync()
}

func Debug(msg string, args ...any) { current().Debugw(msg, normalize(args)...) }
func Info(msg string, args ...any)  { current().Infow(msg, normalize(args)...) }
func Warn(msg string, args ...any)  { current().Warnw(msg, normalize(args)...) }
func Error(msg string, args ...any) { current().Errorw(msg, normalize(args)...) }
func Fatal(msg string, args ...any) { current().Fatalw(msg, normalize(args)...) }

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// normalize turns the loose call shapes used across the codebase into
// well-formed key/value pairs: a bare error becomes "error", err and a
// dangling key gets an empty value.
func normalize(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case error:
			out = append(out, "error", v)
		case string:
			if i+1 < len(args) {
				out = append(out, v, args[i+1])
				i++
			} else {
				out = append(out, v, "")
			}
		default:
			out = append(out, "arg", v)
		}
	}
	return out
}
