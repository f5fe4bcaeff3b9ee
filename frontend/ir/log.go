package ir

import (
	"context"
	"log/slog"

	"github.com/cottand/narrow/frontend/types"
)

// slogExpr wraps an Expr as a slog.LogValuer to not render expression strings
// unless they definitely need to be logged
func slogExpr(expr Expr) slog.LogValuer {
	return exprLogValuer{expr}
}
func slogStmt(stmt Stmt) slog.LogValuer    { return stmtLogValuer{stmt} }
func slogType(t types.Type) slog.LogValuer { return typeLogValuer{t} }

type exprLogValuer struct{ Expr }
type stmtLogValuer struct{ Stmt }
type typeLogValuer struct{ types.Type }

func (l exprLogValuer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("str", ExprString(l.Expr)),
		slog.String("pos", RangeOf(l.Expr).String()),
	)
}
func (l stmtLogValuer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("str", StmtString(l.Stmt)),
		slog.String("pos", RangeOf(l.Stmt).String()),
	)
}
func (l typeLogValuer) LogValue() slog.Value { return slog.StringValue(l.Type.String()) }

// SlogHandler wraps underlying so that it lazily renders attributes holding
// expressions, statements and types
func SlogHandler(underlying slog.Handler) slog.Handler {
	return &exprLogHandler{underlying: underlying}
}

type exprLogHandler struct {
	underlying slog.Handler
}

func wrapValue(v slog.Value) slog.Value {
	if v.Kind() != slog.KindAny {
		return v
	}
	switch value := v.Any().(type) {
	case Expr:
		return slog.AnyValue(slogExpr(value))
	case Stmt:
		return slog.AnyValue(slogStmt(value))
	case types.Type:
		return slog.AnyValue(slogType(value))
	}
	return v
}

func (l *exprLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return l.underlying.Enabled(ctx, level)
}

func (l *exprLogHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		attr.Value = wrapValue(attr.Value)
		newRecord.AddAttrs(attr)
		return true
	})
	return l.underlying.Handle(ctx, newRecord)
}

func (l *exprLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	wrapped := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		attr.Value = wrapValue(attr.Value)
		wrapped[i] = attr
	}
	return SlogHandler(l.underlying.WithAttrs(wrapped))
}

func (l *exprLogHandler) WithGroup(name string) slog.Handler {
	return SlogHandler(l.underlying.WithGroup(name))
}
