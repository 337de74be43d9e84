// Package logging builds the daemon's zap logger.
//
// The logger writes JSON (or console) lines to stdout and, when telemetry is
// enabled, mirrors every entry to the OpenTelemetry log pipeline through the
// otelzap bridge. Components receive the underlying *zap.Logger; request
// scoped code adds correlation fields with ContextFields:
//
//	ctx = logging.WithRequestID(ctx, rid)
//	ctx = logging.WithDocumentID(ctx, docID)
//	logger.Info(ctx, "chat turn complete", zap.Duration("took", d))
//
// produces
//
//	{"ts":"...","level":"info","msg":"chat turn complete","request.id":"...","document.id":"...","took":"1.2s"}
//
// # Secret Redaction
//
// Field names such as "token" and "authorization" are redacted by the
// encoder, and string values matching configured patterns (for example
// "Token abc") are masked. config.Secret values should be logged with the
// Secret helper.
//
// # Testing
//
// NewTestLogger records entries in memory for assertions:
//
//	tl := logging.NewTestLogger()
//	mgr := history.NewManager(store, tl.Underlying(), history.Config{})
//	tl.AssertLogged(t, zapcore.WarnLevel, "failed to load history")
package logging
