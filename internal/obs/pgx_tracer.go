package obs

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ctxSpanKey struct{}

// PGXTracer implements pgx.QueryTracer to create spans for ledger queries.
// Spans are named after the sqlc query when the statement carries one.
type PGXTracer struct{}

// TraceQueryStart starts a span for the SQL statement.
func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	name := "pgx.query"
	if query := QueryName(data.SQL); query != "" {
		name = "pgx." + query
	}
	ctx, span := otel.Tracer("kingcard.ledger").Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", truncateSQL(data.SQL)),
	)
	if op := sqlOperation(data.SQL); op != "" {
		span.SetAttributes(attribute.String("db.operation", op))
	}
	return context.WithValue(ctx, ctxSpanKey{}, span)
}

// TraceQueryEnd ends the span and records any error.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if span, ok := ctx.Value(ctxSpanKey{}).(trace.Span); ok {
		if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
			span.RecordError(data.Err)
			span.SetStatus(codes.Error, "query failed")
		}
		span.End()
	}
}

func truncateSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if len(trimmed) > 300 {
		return trimmed[:300] + "..."
	}
	return trimmed
}

// QueryName extracts the sqlc query name from a "-- name: X :kind" header.
func QueryName(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if !strings.HasPrefix(trimmed, "-- name:") {
		return ""
	}
	fields := strings.Fields(strings.TrimPrefix(trimmed, "-- name:"))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func sqlOperation(sql string) string {
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		return strings.ToUpper(strings.Fields(line)[0])
	}
	return ""
}
