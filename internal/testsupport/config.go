package testsupport

import (
	"path/filepath"
	"testing"

	"faultscope/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Dataset.Root = filepath.Join(base, "dataset")
	cfgVal.LLM.APIKey = "test"
	cfgVal.Workflow.MinRequestSeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLMBaseURL points both router and narrator at the given endpoint,
// usually an httptest server.
func WithLLMBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithAlgorithm overrides the default classifier.
func WithAlgorithm(code string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analysis.Algorithm = code
	}
}

// WithDatasetRoot points the config at an existing dataset tree.
func WithDatasetRoot(root string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dataset.Root = root
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
