// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

type correlationKey struct{}

// Init 配置全局 zerolog，并让没有携带 logger 的 context 回落到全局 logger
func Init(serviceName string, level string, out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zlog.Logger = zerolog.New(out).With().Timestamp().Str("service", serviceName).Logger()
	zerolog.DefaultContextLogger = &zlog.Logger
}

// WithCorrelationID 把 correlation id 放入 context，之后的日志都会带上它
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

// CorrelationID 取出 context 中的 correlation id
func CorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationKey{}).(string)
	return v
}

// Ctx 返回 context 中的 logger，并附加 trace_id 与 correlation_id
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &zlog.Logger
	}

	lc := l.With()
	enriched := false
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		lc = lc.Str("trace_id", sc.TraceID().String())
		enriched = true
	}
	if cid := CorrelationID(ctx); cid != "" {
		lc = lc.Str("correlation_id", cid)
		enriched = true
	}
	if !enriched {
		return l
	}
	out := lc.Logger()
	return &out
}
