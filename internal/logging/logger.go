package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ParseLevel maps a textual log level onto slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// New builds the process logger writing JSON records to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: level}))
}

type scopeKey struct{}

// scope is the logging state carried by a request context. The logger already
// has every non-empty id below attached as an attribute.
type scope struct {
	logger    *slog.Logger
	requestID string
	accountID string
	traceID   string
	spanID    string
}

func scopeOf(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func (s scope) into(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithLogger replaces the context logger, keeping the ids already recorded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	s := scopeOf(ctx)
	s.logger = logger
	return s.into(ctx)
}

// FromContext returns the context logger, or slog.Default when none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if logger := scopeOf(ctx).logger; logger != nil {
		return logger
	}
	return slog.Default()
}

// WithRequestID tags the context logger with request_id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	s := scopeOf(ctx)
	s.requestID = requestID
	s.logger = FromContext(ctx).With(slog.String("request_id", requestID))
	return s.into(ctx)
}

// RequestIDFromContext returns the id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	return scopeOf(ctx).requestID
}

// WithAccountID tags the context logger with account_id once a request is
// authenticated.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	if accountID == "" {
		return ctx
	}
	s := scopeOf(ctx)
	s.accountID = accountID
	s.logger = FromContext(ctx).With(slog.String("account_id", accountID))
	return s.into(ctx)
}

// AccountIDFromContext returns the id set by WithAccountID.
func AccountIDFromContext(ctx context.Context) string {
	return scopeOf(ctx).accountID
}

// TraceIDFromContext returns the trace opened by the outermost StartSpan.
func TraceIDFromContext(ctx context.Context) string {
	return scopeOf(ctx).traceID
}

// SpanIDFromContext returns the innermost open span.
func SpanIDFromContext(ctx context.Context) string {
	return scopeOf(ctx).spanID
}

// Span times one named operation. Records logged through the span context
// carry trace_id, span_id and span_name.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	err    error
}

// StartSpan opens a span under the current one, starting a trace when the
// context has none.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := scopeOf(ctx)
	logger := FromContext(ctx)

	if s.traceID == "" {
		s.traceID = uuid.NewString()
		logger = logger.With(slog.String("trace_id", s.traceID))
	}
	spanID := uuid.NewString()
	attrs := []any{slog.String("span_id", spanID), slog.String("span_name", name)}
	if s.spanID != "" {
		attrs = append(attrs, slog.String("parent_span_id", s.spanID))
	}
	s.spanID = spanID
	s.logger = logger.With(attrs...)

	return s.into(ctx), &Span{name: name, logger: s.logger, start: time.Now()}
}

// Fail marks the span as failed; End then logs at warn level with err.
func (s *Span) Fail(err error) {
	if s != nil && err != nil {
		s.err = err
	}
}

// End logs the span duration.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.err != nil {
		s.logger.Warn("span failed", elapsed, slog.String("error", s.err.Error()))
		return
	}
	s.logger.Info("span completed", elapsed)
}
