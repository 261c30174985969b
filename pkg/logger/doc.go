// Package logger provides a context-aware wrapper around Go's slog package
// with functional options, environment presets and attribute helpers that
// keep key names consistent across the billing service.
//
// New builds a slog.Handler (text or JSON) and wraps it with
// LogHandlerDecorator, which runs the registered ContextExtractor callbacks on
// every record so request-scoped values such as the request id are logged
// without being passed around explicitly. The decorator also adds the
// attributes stamped with WithBillingAttrs, which the webhook processor uses
// to tag every record of one delivery with its provider and event id.
//
// # Usage
//
//	log := logger.NewFromConfig(cfg.Log,
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "subscription activated",
//		logger.WorkspaceID(sub.WorkspaceID),
//		logger.PlanID(sub.PlanID),
//	)
//
// # Configuration
//
//   - WithEnvironment: development (text, debug) or staging/production (JSON, info) defaults.
//   - WithFormat, WithLevel, WithLevelName: explicit overrides.
//   - WithAttr: static attributes on every record.
//   - WithContextExtractors, WithContextValue: attributes pulled from context.
//
// Identifier helpers such as AccountID or WorkspaceID return an empty
// slog.Attr for empty values, and Error returns one for a nil error, so
// they can be passed unconditionally.
package logger
