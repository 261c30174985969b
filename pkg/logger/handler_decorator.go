package logger

import (
	"context"
	"log/slog"
	"slices"
)

// ContextExtractor extracts a slog attribute from context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

type billingAttrsKey struct{}

// WithBillingAttrs returns a context whose log records carry attrs on top of
// those added by its parents. The webhook processor stamps provider and event
// id this way, so store and cache logs of one delivery share them.
// Empty attrs are skipped; a later attr replaces an earlier one with the same key.
func WithBillingAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	merged := slices.Clone(BillingAttrs(ctx))
	for _, a := range attrs {
		if a.Equal(slog.Attr{}) {
			continue
		}
		merged = slices.DeleteFunc(merged, func(b slog.Attr) bool { return b.Key == a.Key })
		merged = append(merged, a)
	}
	return context.WithValue(ctx, billingAttrsKey{}, merged)
}

// BillingAttrs returns the attributes stamped on ctx by WithBillingAttrs.
func BillingAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(billingAttrsKey{}).([]slog.Attr)
	return attrs
}

// LogHandlerDecorator wraps a slog.Handler and adds the billing attributes of
// the record's context plus the output of every extractor. Attributes the
// record already carries win over context ones with the same key.
type LogHandlerDecorator struct {
	next       slog.Handler
	extractors []ContextExtractor
}

// NewLogHandlerDecorator creates a new decorated handler. Nil extractors are dropped.
func NewLogHandlerDecorator(next slog.Handler, extractors ...ContextExtractor) slog.Handler {
	clean := make([]ContextExtractor, 0, len(extractors))
	for _, ex := range extractors {
		if ex != nil {
			clean = append(clean, ex)
		}
	}
	return &LogHandlerDecorator{next: next, extractors: clean}
}

func (h *LogHandlerDecorator) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *LogHandlerDecorator) Handle(ctx context.Context, rec slog.Record) error {
	if ctx == nil {
		return h.next.Handle(ctx, rec)
	}

	stamped := BillingAttrs(ctx)
	if len(stamped) == 0 && len(h.extractors) == 0 {
		return h.next.Handle(ctx, rec)
	}

	seen := make(map[string]struct{}, rec.NumAttrs()+len(stamped))
	rec.Attrs(func(a slog.Attr) bool {
		seen[a.Key] = struct{}{}
		return true
	})
	add := func(a slog.Attr) {
		if _, dup := seen[a.Key]; dup {
			return
		}
		seen[a.Key] = struct{}{}
		rec.AddAttrs(a)
	}

	for _, a := range stamped {
		add(a)
	}
	for _, ex := range h.extractors {
		if a, ok := ex(ctx); ok {
			add(a)
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *LogHandlerDecorator) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandlerDecorator{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *LogHandlerDecorator) WithGroup(name string) slog.Handler {
	return &LogHandlerDecorator{next: h.next.WithGroup(name), extractors: h.extractors}
}
