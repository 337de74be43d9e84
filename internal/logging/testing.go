package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger backed by an in-memory zap observer. Redaction and
// sampling are not applied so tests see every entry as written.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger records entries at every level.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(zapcore.DebugLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, observed: observed}
}

func (t *TestLogger) All() []observer.LoggedEntry { return t.observed.All() }

// FilterMessage narrows to entries whose message contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessageSnippet(msg)
}

// ForDocument narrows to entries carrying document.id=id, as added by
// ContextFields.
func (t *TestLogger) ForDocument(id string) *observer.ObservedLogs {
	return t.observed.FilterField(zap.String("document.id", id))
}

func (t *TestLogger) Reset() { t.observed.TakeAll() }

func (t *TestLogger) matching(level zapcore.Level, snippet string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, snippet) {
			out = append(out, e)
		}
	}
	return out
}

// AssertLogged fails tb unless an entry at level contains snippet.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if len(t.matching(level, snippet)) == 0 {
		tb.Errorf("no %s entry containing %q among %d entries", level, snippet, t.observed.Len())
	}
}

// AssertNotLogged fails tb if any entry at level contains snippet.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if n := len(t.matching(level, snippet)); n > 0 {
		tb.Errorf("found %d unexpected %s entries containing %q", n, level, snippet)
	}
}

// AssertField fails tb unless an entry whose message contains snippet has
// key set to want.
func (t *TestLogger) AssertField(tb testing.TB, snippet, key string, want any) {
	tb.Helper()
	for _, e := range t.FilterMessage(snippet).All() {
		if got, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(got, want) {
			return
		}
	}
	tb.Errorf("no entry containing %q has %s=%v", snippet, key, want)
}
