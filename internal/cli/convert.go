package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FlyingJaffa/pdf2markdown/internal/config"
	"github.com/FlyingJaffa/pdf2markdown/internal/pdfpage"
	"github.com/FlyingJaffa/pdf2markdown/internal/process"
	"github.com/FlyingJaffa/pdf2markdown/internal/token"
)

// convertOptions holds validated options for the convert command.
type convertOptions struct {
	inputPath    string
	output       string
	visionModel  string
	cleanupModel string
	parallel     int
}

// ConvertCmd creates the convert command (PDF to cleaned Markdown).
// The env parameter provides injectable dependencies for testing.
func ConvertCmd(env *Env) *cobra.Command {
	var (
		output       string
		visionModel  string
		cleanupModel string
		parallel     int
	)

	cmd := &cobra.Command{
		Use:   "convert <pdf-file>",
		Short: "Convert a PDF to a cleaned Markdown document",
		Long: `Convert a PDF to a cleaned Markdown document.

Each page is classified as text-dominant or image-dominant. Text pages are
sent to the model as extracted text; image pages are rendered with pdftoppm
and sent through the vision endpoint. The per-page transcriptions are then
run through a final cleanup pass, split into token-bounded chunks when the
document is too large for one request.

Requires OPENAI_API_KEY and a pdftoppm binary (poppler-utils) on PATH or
via PDFTOPPM_PATH.`,
		Example: `  pdf2md convert report.pdf
  pdf2md convert report.pdf -o notes/report.md
  pdf2md convert scan.pdf --parallel 4
  pdf2md convert report.pdf --vision-model gpt-4o --cleanup-model gpt-4o-mini`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseConvertOptions(args[0], output, visionModel, cleanupModel, parallel)
			if err != nil {
				return err
			}
			return runConvert(cmd, env, opts)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: <input>.md)")
	cmd.Flags().StringVar(&visionModel, "vision-model", "", "Model for page transcription (default: config or "+config.DefaultVisionModel+")")
	cmd.Flags().StringVar(&cleanupModel, "cleanup-model", "", "Model for the cleanup pass (default: config or "+config.DefaultCleanupModel+")")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 1, "Concurrent page/chunk requests (1 = sequential)")

	return cmd
}

// deriveOutputPath converts a PDF path to its default Markdown output name.
// Example: "report.pdf" -> "report.md"
func deriveOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + ".md"
}

// parseConvertOptions validates and parses CLI inputs into convertOptions.
// All parsing happens at the CLI boundary.
func parseConvertOptions(inputPath, output, visionModel, cleanupModel string, parallel int) (convertOptions, error) {
	if strings.ToLower(filepath.Ext(inputPath)) != ".pdf" {
		return convertOptions{}, fmt.Errorf("%s: %w", inputPath, ErrNotPDF)
	}

	if parallel < 1 || parallel > process.MaxRecommendedParallel {
		return convertOptions{}, fmt.Errorf("%w: %d (must be 1-%d)",
			ErrInvalidParallel, parallel, process.MaxRecommendedParallel)
	}

	return convertOptions{
		inputPath:    inputPath,
		output:       output,
		visionModel:  visionModel,
		cleanupModel: cleanupModel,
		parallel:     parallel,
	}, nil
}

// runConvert executes the convert command with validated options.
func runConvert(cmd *cobra.Command, env *Env, opts convertOptions) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	// 1. File exists
	if _, err := os.Stat(opts.inputPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", opts.inputPath, ErrFileNotFound)
		}
		return fmt.Errorf("cannot access file: %w", err)
	}

	// 2. API key
	apiKey := env.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return ErrAPIKeyMissing
	}

	// 3. pdftoppm available
	pdftoppmPath, err := env.PdftoppmResolver.Resolve()
	if err != nil {
		return err
	}

	// 4. Load config for output-dir and model defaults
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}

	// 5. Model selection: flag > config > default (config.Load fills the
	// defaults, so cfg values are always non-empty on success).
	visionModel := pickModel(opts.visionModel, cfg.VisionModel, config.DefaultVisionModel)
	cleanupModel := pickModel(opts.cleanupModel, cfg.CleanupModel, config.DefaultCleanupModel)

	// 6. Resolve output path (derive default from input basename only)
	defaultOutput := deriveOutputPath(filepath.Base(opts.inputPath))
	output := config.ResolveOutputPath(opts.output, cfg.OutputDir, defaultOutput)
	warnNonMarkdownExtension(env.Stderr, output)

	// === CONVERT ===

	pagesUsage, cleanupUsage, finalText, err := convertDocument(ctx, env, convertJob{
		inputPath:    opts.inputPath,
		apiKey:       apiKey,
		pdftoppmPath: pdftoppmPath,
		visionModel:  visionModel,
		cleanupModel: cleanupModel,
		parallel:     opts.parallel,
	})
	if err != nil {
		return err
	}

	// === WRITE OUTPUT ===

	if err := writeFileAtomic(output, finalText); err != nil {
		return err
	}

	reportUsage(env.Stderr, pagesUsage, cleanupUsage)
	fmt.Fprintf(env.Stderr, "Done: %s\n", output)
	return nil
}

// convertJob carries the resolved inputs of one PDF conversion.
type convertJob struct {
	inputPath    string
	apiKey       string
	pdftoppmPath string
	visionModel  string
	cleanupModel string
	parallel     int
}

// convertDocument runs the page and cleanup stages for one PDF.
// Shared by the convert and scan commands.
func convertDocument(ctx context.Context, env *Env, job convertJob) (pagesUsage, cleanupUsage token.Usage, finalText string, err error) {
	source, err := env.DocumentOpener.Open(job.inputPath)
	if err != nil {
		return token.Usage{}, token.Usage{}, "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = source.Close() }()

	fmt.Fprintf(env.Stderr, "Processing %d pages...\n", source.TotalPages())

	processor := env.ProcessorFactory.NewProcessor(job.apiKey, job.pdftoppmPath, job.visionModel)
	results, pagesUsage, err := processor.ProcessAll(ctx, source, job.inputPath, job.parallel,
		func(page, total int, kind pdfpage.Kind) {
			fmt.Fprintf(env.Stderr, "  Page %d/%d (%s)...\n", page, total, kind)
		})
	if err != nil {
		return token.Usage{}, token.Usage{}, "", err
	}

	document := process.Assemble(results)

	fmt.Fprintln(env.Stderr, "Tidying up document...")

	cleaner := env.CleanerFactory.NewCleaner(job.apiKey, job.cleanupModel, job.parallel,
		func(phase string, current, total int) {
			if phase == "chunk" {
				fmt.Fprintf(env.Stderr, "  Cleaning chunk %d/%d...\n", current, total)
			}
		})
	result, err := cleaner.Run(ctx, document)
	if err != nil {
		return token.Usage{}, token.Usage{}, "", err
	}

	if result.Degraded {
		fmt.Fprintln(env.Stderr, "Warning: some content kept its original formatting after cleanup failures")
	}

	return pagesUsage, result.Usage, result.Text, nil
}

// pickModel returns the first non-empty model name.
func pickModel(flag, configured, fallback string) string {
	if flag != "" {
		return flag
	}
	if configured != "" {
		return configured
	}
	return fallback
}
