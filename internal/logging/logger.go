package logging

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	requestIDKey
)

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// Init replaces the process logger. Call once from main.
func Init(debug bool) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	Replace(l)
	return l, nil
}

// Replace swaps the process logger.
func Replace(l *zap.Logger) {
	logger.Store(l)
}

func L() *zap.Logger {
	return logger.Load()
}

// WithCtx returns the process logger annotated with the user and request ids carried by ctx.
func WithCtx(ctx context.Context) *zap.Logger {
	fields := []zap.Field{}
	if v, ok := ctx.Value(userIDKey).(int64); ok {
		fields = append(fields, zap.Int64("user_id", v))
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		fields = append(fields, zap.String("request_id", v))
	}
	return L().With(fields...)
}

// NewRequestContext tags ctx with userID and a fresh request id.
func NewRequestContext(ctx context.Context, userID int64) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, requestIDKey, uuid.NewString())
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
