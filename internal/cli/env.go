package cli

import (
	"context"
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/FlyingJaffa/pdf2markdown/internal/cleanup"
	"github.com/FlyingJaffa/pdf2markdown/internal/config"
	"github.com/FlyingJaffa/pdf2markdown/internal/pdfpage"
	"github.com/FlyingJaffa/pdf2markdown/internal/poppler"
	"github.com/FlyingJaffa/pdf2markdown/internal/process"
	"github.com/FlyingJaffa/pdf2markdown/internal/token"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O and environment
	Stderr io.Writer
	Getenv func(string) string

	// Factories for domain objects
	PdftoppmResolver PdftoppmResolver
	ConfigLoader     ConfigLoader
	DocumentOpener   DocumentOpener
	ProcessorFactory ProcessorFactory
	CleanerFactory   CleanerFactory
}

// PdftoppmResolver resolves the path to the pdftoppm binary.
type PdftoppmResolver interface {
	Resolve() (string, error)
}

// ConfigLoader loads and provides access to configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// DocumentOpener opens a PDF for page classification.
type DocumentOpener interface {
	Open(path string) (pdfpage.Source, error)
}

// PageProcessor transcribes every page of an open PDF into markdown.
// process.Processor implements this.
type PageProcessor interface {
	ProcessAll(ctx context.Context, source pdfpage.Source, pdfPath string, maxParallel int, onProgress process.ProgressFunc) ([]process.Result, token.Usage, error)
}

// Cleaner runs the final cleanup pass over the assembled document.
// cleanup.Pipeline implements this.
type Cleaner interface {
	Run(ctx context.Context, document string) (cleanup.Result, error)
}

// ProcessorFactory creates page processors bound to an API key, a pdftoppm
// binary, and a vision model.
type ProcessorFactory interface {
	NewProcessor(apiKey, pdftoppmPath, model string) PageProcessor
}

// CleanerFactory creates cleanup pipelines.
type CleanerFactory interface {
	NewCleaner(apiKey, model string, maxParallel int, onProgress cleanup.ProgressFunc) Cleaner
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithPdftoppmResolver sets the pdftoppm resolver.
func WithPdftoppmResolver(r PdftoppmResolver) EnvOption {
	return func(e *Env) {
		e.PdftoppmResolver = r
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithDocumentOpener sets the PDF opener.
func WithDocumentOpener(o DocumentOpener) EnvOption {
	return func(e *Env) {
		e.DocumentOpener = o
	}
}

// WithProcessorFactory sets the page processor factory.
func WithProcessorFactory(f ProcessorFactory) EnvOption {
	return func(e *Env) {
		e.ProcessorFactory = f
	}
}

// WithCleanerFactory sets the cleanup pipeline factory.
func WithCleanerFactory(f CleanerFactory) EnvOption {
	return func(e *Env) {
		e.CleanerFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stderr:           os.Stderr,
		Getenv:           os.Getenv,
		PdftoppmResolver: poppler.NewResolver(),
		ConfigLoader:     &defaultConfigLoader{},
		DocumentOpener:   &defaultDocumentOpener{},
		ProcessorFactory: &defaultProcessorFactory{},
		CleanerFactory:   &defaultCleanerFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

// defaultDocumentOpener implements DocumentOpener using the pdfpage package.
type defaultDocumentOpener struct{}

func (defaultDocumentOpener) Open(path string) (pdfpage.Source, error) {
	return pdfpage.Open(path, config.ImageAreaThreshold)
}

// defaultProcessorFactory implements ProcessorFactory using OpenAI.
type defaultProcessorFactory struct{}

func (defaultProcessorFactory) NewProcessor(apiKey, pdftoppmPath, model string) PageProcessor {
	client := openai.NewClient(apiKey)
	renderer := poppler.NewRenderer(pdftoppmPath)
	return process.NewProcessor(client, renderer,
		process.WithModel(model),
		process.WithMaxTokens(config.MaxTokens),
		process.WithMaxRetries(config.MaxRetries),
	)
}

// defaultCleanerFactory implements CleanerFactory using OpenAI.
type defaultCleanerFactory struct{}

func (defaultCleanerFactory) NewCleaner(apiKey, model string, maxParallel int, onProgress cleanup.ProgressFunc) Cleaner {
	client := openai.NewClient(apiKey)
	return cleanup.NewPipeline(client,
		cleanup.WithModel(model),
		cleanup.WithMaxTokens(config.MaxTokens),
		cleanup.WithMaxChunkTokens(config.MaxChunkTokens),
		cleanup.WithMaxRetries(config.MaxRetries),
		cleanup.WithMaxParallel(maxParallel),
		cleanup.WithProgress(onProgress),
	)
}

// Compile-time interface verification.
var (
	_ PdftoppmResolver = (*poppler.Resolver)(nil)
	_ ConfigLoader     = (*defaultConfigLoader)(nil)
	_ DocumentOpener   = (*defaultDocumentOpener)(nil)
	_ ProcessorFactory = (*defaultProcessorFactory)(nil)
	_ CleanerFactory   = (*defaultCleanerFactory)(nil)
	_ PageProcessor    = (*process.Processor)(nil)
	_ Cleaner          = (*cleanup.Pipeline)(nil)
)
