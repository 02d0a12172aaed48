package logging

import (
	"context"
	"maps"
	"testing"

	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

type recordingLogger struct {
	fields   []map[string]any
	contexts []context.Context
}

func (r *recordingLogger) Trace(string, ...any) {}
func (r *recordingLogger) Debug(string, ...any) {}
func (r *recordingLogger) Info(string, ...any)  {}
func (r *recordingLogger) Warn(string, ...any)  {}
func (r *recordingLogger) Error(string, ...any) {}
func (r *recordingLogger) Fatal(string, ...any) {}

func (r *recordingLogger) WithFields(fields map[string]any) interfaces.Logger {
	copied := map[string]any{}
	maps.Copy(copied, fields)
	r.fields = append(r.fields, copied)
	return r
}

func (r *recordingLogger) WithContext(ctx context.Context) interfaces.Logger {
	r.contexts = append(r.contexts, ctx)
	return r
}

type stubProvider struct {
	requested []string
	logger    interfaces.Logger
}

func (s *stubProvider) GetLogger(name string) interfaces.Logger {
	s.requested = append(s.requested, name)
	return s.logger
}

func TestModuleLoggerFallsBackToNoOp(t *testing.T) {
	logger := ModuleLogger(nil, "pagesync.test")
	if _, ok := logger.(noopLogger); !ok {
		t.Fatalf("expected noopLogger fallback, got %T", logger)
	}
	logger = logger.WithContext(context.Background())
	logger.Debug("noop")
}

func TestModuleLoggerUsesProviderAndAnnotatesFields(t *testing.T) {
	rec := &recordingLogger{}
	provider := &stubProvider{logger: rec}

	logger := ModuleLogger(provider, publisherModule)

	if len(provider.requested) != 1 || provider.requested[0] != publisherModule {
		t.Fatalf("expected module %s, got %v", publisherModule, provider.requested)
	}
	if len(rec.fields) != 1 {
		t.Fatalf("expected module fields to be applied once, got %d", len(rec.fields))
	}
	if got := rec.fields[0]["module"]; got != publisherModule {
		t.Fatalf("expected module field %s, got %v", publisherModule, got)
	}
	logger.Info("with provider")
}

func TestModuleLoggerDefaultsToRootModule(t *testing.T) {
	rec := &recordingLogger{}
	provider := &stubProvider{logger: rec}

	_ = ModuleLogger(provider, "")

	if len(provider.requested) != 1 || provider.requested[0] != rootModule {
		t.Fatalf("expected default module %s, got %v", rootModule, provider.requested)
	}
	if rec.fields[0]["module"] != rootModule {
		t.Fatalf("expected module field %s, got %v", rootModule, rec.fields[0]["module"])
	}
}

func TestModuleHelpersRequestTheirNamespace(t *testing.T) {
	cases := map[string]func(interfaces.LoggerProvider) interfaces.Logger{
		syncModule:      SyncLogger,
		publisherModule: PublisherLogger,
		manifestModule:  ManifestLogger,
		markdownModule:  MarkdownLogger,
	}
	for module, build := range cases {
		provider := &stubProvider{logger: &recordingLogger{}}
		_ = build(provider)
		if len(provider.requested) != 1 || provider.requested[0] != module {
			t.Fatalf("expected %s request, got %v", module, provider.requested)
		}
	}
}

func TestWithEntryContextSkipsEmptyValues(t *testing.T) {
	rec := &recordingLogger{}

	WithEntryContext(rec, " intro ", "", "changed")

	if len(rec.fields) != 1 {
		t.Fatalf("expected one WithFields call, got %d", len(rec.fields))
	}
	fields := rec.fields[0]
	if fields[fieldEntrySlug] != "intro" {
		t.Fatalf("expected trimmed slug, got %v", fields[fieldEntrySlug])
	}
	if _, ok := fields[fieldEntrySource]; ok {
		t.Fatalf("expected empty source to be skipped, got %v", fields)
	}
	if fields[fieldEntryState] != "changed" {
		t.Fatalf("expected state field, got %v", fields[fieldEntryState])
	}
}

func TestContextFieldsMergeAndCopy(t *testing.T) {
	ctx := ContextWithFields(context.Background(), map[string]any{"run_id": "abc"})
	ctx = ContextWithFields(ctx, map[string]any{"entry": "intro"})

	fields := ContextFields(ctx)
	if fields["run_id"] != "abc" || fields["entry"] != "intro" {
		t.Fatalf("expected merged fields, got %v", fields)
	}

	fields["run_id"] = "mutated"
	if ContextFields(ctx)["run_id"] != "abc" {
		t.Fatal("expected ContextFields to return a copy")
	}
}
