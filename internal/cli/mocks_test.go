package cli

import (
	"context"
	"sync"

	"github.com/FlyingJaffa/pdf2markdown/internal/cleanup"
	"github.com/FlyingJaffa/pdf2markdown/internal/config"
	"github.com/FlyingJaffa/pdf2markdown/internal/pdfpage"
	"github.com/FlyingJaffa/pdf2markdown/internal/process"
	"github.com/FlyingJaffa/pdf2markdown/internal/token"
)

// ---------------------------------------------------------------------------
// Mock PdftoppmResolver
// ---------------------------------------------------------------------------

type mockPdftoppmResolver struct {
	ResolveFunc func() (string, error)

	mu           sync.Mutex
	resolveCalls int
}

func (m *mockPdftoppmResolver) Resolve() (string, error) {
	m.mu.Lock()
	m.resolveCalls++
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc()
	}
	return "/usr/bin/pdftoppm", nil
}

func (m *mockPdftoppmResolver) ResolveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveCalls
}

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func() (config.Config, error)

	mu        sync.Mutex
	loadCalls int
}

func (m *mockConfigLoader) Load() (config.Config, error) {
	m.mu.Lock()
	m.loadCalls++
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return config.Config{
		VisionModel:  config.DefaultVisionModel,
		CleanupModel: config.DefaultCleanupModel,
	}, nil
}

func (m *mockConfigLoader) LoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

// ---------------------------------------------------------------------------
// Mock DocumentOpener + Source
// ---------------------------------------------------------------------------

type mockDocumentOpener struct {
	OpenFunc func(path string) (pdfpage.Source, error)

	mu        sync.Mutex
	openCalls []string // paths passed
}

func (m *mockDocumentOpener) Open(path string) (pdfpage.Source, error) {
	m.mu.Lock()
	m.openCalls = append(m.openCalls, path)
	m.mu.Unlock()

	if m.OpenFunc != nil {
		return m.OpenFunc(path)
	}
	return &mockSource{pages: 1}, nil
}

func (m *mockDocumentOpener) OpenCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.openCalls...)
}

type mockSource struct {
	pages int

	mu         sync.Mutex
	closeCalls int
}

func (m *mockSource) TotalPages() int { return m.pages }

func (m *mockSource) Page(n int) (pdfpage.Page, error) {
	return pdfpage.Page{Number: n, Kind: pdfpage.KindText, Text: "page text"}, nil
}

func (m *mockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	return nil
}

func (m *mockSource) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// ---------------------------------------------------------------------------
// Mock ProcessorFactory + PageProcessor
// ---------------------------------------------------------------------------

type processorCall struct {
	APIKey       string
	PdftoppmPath string
	Model        string
}

type mockProcessorFactory struct {
	mockProcessor *mockPageProcessor

	mu    sync.Mutex
	calls []processorCall
}

func (m *mockProcessorFactory) NewProcessor(apiKey, pdftoppmPath, model string) PageProcessor {
	m.mu.Lock()
	m.calls = append(m.calls, processorCall{apiKey, pdftoppmPath, model})
	m.mu.Unlock()

	if m.mockProcessor != nil {
		return m.mockProcessor
	}
	return &mockPageProcessor{}
}

func (m *mockProcessorFactory) NewProcessorCalls() []processorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]processorCall(nil), m.calls...)
}

type mockPageProcessor struct {
	ProcessAllFunc func(ctx context.Context, source pdfpage.Source, pdfPath string, maxParallel int, onProgress process.ProgressFunc) ([]process.Result, token.Usage, error)

	mu    sync.Mutex
	calls int
}

func (m *mockPageProcessor) ProcessAll(ctx context.Context, source pdfpage.Source, pdfPath string, maxParallel int, onProgress process.ProgressFunc) ([]process.Result, token.Usage, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.ProcessAllFunc != nil {
		return m.ProcessAllFunc(ctx, source, pdfPath, maxParallel, onProgress)
	}
	return []process.Result{{Content: "# Page 1", Estimated: 100, Actual: 120}},
		token.Usage{Estimated: 100, Actual: 120}, nil
}

func (m *mockPageProcessor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ---------------------------------------------------------------------------
// Mock CleanerFactory + Cleaner
// ---------------------------------------------------------------------------

type cleanerCall struct {
	APIKey      string
	Model       string
	MaxParallel int
}

type mockCleanerFactory struct {
	mockCleaner *mockCleaner

	mu    sync.Mutex
	calls []cleanerCall
}

func (m *mockCleanerFactory) NewCleaner(apiKey, model string, maxParallel int, onProgress cleanup.ProgressFunc) Cleaner {
	m.mu.Lock()
	m.calls = append(m.calls, cleanerCall{apiKey, model, maxParallel})
	m.mu.Unlock()

	if m.mockCleaner != nil {
		return m.mockCleaner
	}
	return &mockCleaner{}
}

func (m *mockCleanerFactory) NewCleanerCalls() []cleanerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cleanerCall(nil), m.calls...)
}

type mockCleaner struct {
	RunFunc func(ctx context.Context, document string) (cleanup.Result, error)

	mu   sync.Mutex
	docs []string // documents passed
}

func (m *mockCleaner) Run(ctx context.Context, document string) (cleanup.Result, error) {
	m.mu.Lock()
	m.docs = append(m.docs, document)
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, document)
	}
	return cleanup.Result{
		Text:  "cleaned document",
		Usage: token.Usage{Estimated: 50, Actual: 60},
	}, nil
}

func (m *mockCleaner) Docs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.docs...)
}

// Compile-time interface verification for mocks.
var (
	_ PdftoppmResolver = (*mockPdftoppmResolver)(nil)
	_ ConfigLoader     = (*mockConfigLoader)(nil)
	_ DocumentOpener   = (*mockDocumentOpener)(nil)
	_ pdfpage.Source   = (*mockSource)(nil)
	_ ProcessorFactory = (*mockProcessorFactory)(nil)
	_ PageProcessor    = (*mockPageProcessor)(nil)
	_ CleanerFactory   = (*mockCleanerFactory)(nil)
	_ Cleaner          = (*mockCleaner)(nil)
)
