// Package logger wraps zap with the service's modes and request-scoped
// fields.
package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ProductionMode  = "production"
	DevelopmentMode = "development"
)

type Logger struct {
	Logger *zap.Logger
}

// New builds a JSON logger in production mode and a colored console logger
// otherwise. It panics if zap rejects the configuration.
func New(mode string) *Logger {
	var cfg zap.Config
	if mode == ProductionMode {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	z, err := cfg.Build(zap.Fields(zap.String("service", "cinecritic")))
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: z}
}

func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// WithContext adds the request id and user id carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return l.Logger
	}
	var fields []zap.Field
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, ok := ctx.Value(userIDKey).(string); ok {
		fields = append(fields, zap.String("user_id", id))
	}
	return l.Logger.With(fields...)
}

// Named returns the logger handed to a component, tagged with its name.
func (l *Logger) Named(component string) *zap.Logger {
	return l.Logger.With(zap.String("component", component))
}

var global = Nop()

// SetGlobalLogger installs l for code that has no logger injected and
// replaces zap's globals.
func SetGlobalLogger(l *Logger) {
	global = l
	zap.ReplaceGlobals(l.Logger)
}

func GetGlobalLogger() *Logger {
	return global
}

func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}
