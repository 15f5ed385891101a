package utils

import (
	"context"
	"math/rand"
)

type contextKey string

// CtxTraceID is the context key of the trace id
const CtxTraceID contextKey = "traceID"

// TraceID is the log field carrying the trace id
const TraceID = "traceID"

const traceIDLen = 16

const traceIDCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateTraceID returns a random alphanumeric id
func GenerateTraceID() string {
	b := make([]byte, traceIDLen)
	for i := range b {
		b[i] = traceIDCharset[rand.Intn(len(traceIDCharset))] //nolint:gosec
	}
	return string(b)
}

// WithTraceID returns a copy of ctx carrying a fresh trace ID, unless ctx already has one
func WithTraceID(ctx context.Context) context.Context {
	if ctx.Value(CtxTraceID) != nil {
		return ctx
	}
	return context.WithValue(ctx, CtxTraceID, GenerateTraceID())
}
