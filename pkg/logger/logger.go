package logger

import (
	"context"

	"docnest/pkg/trace"

	"go.uber.org/zap"
)

var Log *zap.Logger

// NewLogger builds the production logger.
func NewLogger() *zap.Logger {
	return NewLoggerForEnv("production")
}

// NewLoggerForEnv returns a development logger for local runs and a production
// (JSON) logger everywhere else.
func NewLoggerForEnv(env string) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if env == "local" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// WithTrace adds the trace_id carried by ctx, if any.
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}
