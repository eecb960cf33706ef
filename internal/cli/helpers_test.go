package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/FlyingJaffa/pdf2markdown/internal/config"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	resolver     *mockPdftoppmResolver
	configLoader *mockConfigLoader
	opener       *mockDocumentOpener
	processor    *mockProcessorFactory
	cleaner      *mockCleanerFactory
}

func newTestMocks() *testMocks {
	return &testMocks{
		resolver:     &mockPdftoppmResolver{},
		configLoader: &mockConfigLoader{},
		opener:       &mockDocumentOpener{},
		processor:    &mockProcessorFactory{},
		cleaner:      &mockCleanerFactory{},
	}
}

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

// testEnvOptions configures a test environment.
type testEnvOptions struct {
	stderr io.Writer
	getenv func(string) string
	mocks  *testMocks
}

// testEnvOption configures testEnv.
type testEnvOption func(*testEnvOptions)

// withTestStderr overrides where command output is written.
func withTestStderr(w io.Writer) testEnvOption {
	return func(o *testEnvOptions) {
		o.stderr = w
	}
}

// withTestGetenv overrides the environment getter.
func withTestGetenv(fn func(string) string) testEnvOption {
	return func(o *testEnvOptions) {
		o.getenv = fn
	}
}

// withTestMocks injects pre-configured mocks.
func withTestMocks(m *testMocks) testEnvOption {
	return func(o *testEnvOptions) {
		o.mocks = m
	}
}

// testEnv creates a test Env with all dependencies mocked.
// Returns the Env and the mocks for assertions.
func testEnv(opts ...testEnvOption) (*Env, *testMocks) {
	options := &testEnvOptions{
		stderr: &syncBuffer{},
		getenv: defaultTestGetenv,
		mocks:  newTestMocks(),
	}

	for _, opt := range opts {
		opt(options)
	}

	env := &Env{
		Stderr:           options.stderr,
		Getenv:           options.getenv,
		PdftoppmResolver: options.mocks.resolver,
		ConfigLoader:     options.mocks.configLoader,
		DocumentOpener:   options.mocks.opener,
		ProcessorFactory: options.mocks.processor,
		CleanerFactory:   options.mocks.cleaner,
	}

	return env, options.mocks
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// staticEnv returns a getenv function that returns values from the given map.
func staticEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

// defaultTestGetenv provides an OpenAI API key.
func defaultTestGetenv(key string) string {
	if key == "OPENAI_API_KEY" {
		return "test-openai-key"
	}
	return ""
}

// createTestPDF creates a temporary PDF-named file for testing.
// Returns the file path. The file is automatically cleaned up after the test.
func createTestPDF(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)

	// Write minimal content to make the file non-empty
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0644); err != nil {
		t.Fatalf("failed to create test PDF: %v", err)
	}
	return path
}

// configWithOutputDir returns a ConfigLoader that returns a config with the
// given output directory.
func configWithOutputDir(outputDir string) *mockConfigLoader {
	return &mockConfigLoader{
		LoadFunc: func() (config.Config, error) {
			return config.Config{
				OutputDir:    outputDir,
				VisionModel:  config.DefaultVisionModel,
				CleanupModel: config.DefaultCleanupModel,
			}, nil
		},
	}
}
