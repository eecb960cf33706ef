package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FlyingJaffa/pdf2markdown/internal/config"
	"github.com/FlyingJaffa/pdf2markdown/internal/process"
)

// scanOptions holds validated options for the scan command.
type scanOptions struct {
	dataDir      string
	visionModel  string
	cleanupModel string
	parallel     int
}

// ScanCmd creates the scan command (batch-convert a directory of PDFs).
// The env parameter provides injectable dependencies for testing.
func ScanCmd(env *Env) *cobra.Command {
	var (
		dataDir      string
		visionModel  string
		cleanupModel string
		parallel     int
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Convert every PDF in the data directory",
		Long: `Convert every PDF in the data directory to Markdown.

Each PDF produces a Markdown file next to it with the same base name. When
that name is taken, a numbered variant is used instead ("report 2.md"). A
PDF that fails to convert is reported and skipped; the scan continues with
the remaining files.

The data directory comes from --data-dir, the data-dir config key, or the
PDF2MD_DATA_DIR environment variable, in that order. It is created when
missing.`,
		Example: `  pdf2md scan
  pdf2md scan --data-dir ~/Documents/pdfs
  pdf2md scan --parallel 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseScanOptions(dataDir, visionModel, cleanupModel, parallel)
			if err != nil {
				return err
			}
			return runScan(cmd, env, opts)
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "Directory to scan for PDF files (default: config or ./data)")
	cmd.Flags().StringVar(&visionModel, "vision-model", "", "Model for page transcription (default: config or "+config.DefaultVisionModel+")")
	cmd.Flags().StringVar(&cleanupModel, "cleanup-model", "", "Model for the cleanup pass (default: config or "+config.DefaultCleanupModel+")")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 1, "Concurrent page/chunk requests per file (1 = sequential)")

	return cmd
}

// parseScanOptions validates and parses CLI inputs into scanOptions.
func parseScanOptions(dataDir, visionModel, cleanupModel string, parallel int) (scanOptions, error) {
	if parallel < 1 || parallel > process.MaxRecommendedParallel {
		return scanOptions{}, fmt.Errorf("%w: %d (must be 1-%d)",
			ErrInvalidParallel, parallel, process.MaxRecommendedParallel)
	}

	return scanOptions{
		dataDir:      dataDir,
		visionModel:  visionModel,
		cleanupModel: cleanupModel,
		parallel:     parallel,
	}, nil
}

// defaultDataDir is scanned when neither flag, config, nor environment
// names a data directory.
const defaultDataDir = "data"

// runScan executes the scan command with validated options.
func runScan(cmd *cobra.Command, env *Env, opts scanOptions) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	apiKey := env.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return ErrAPIKeyMissing
	}

	pdftoppmPath, err := env.PdftoppmResolver.Resolve()
	if err != nil {
		return err
	}

	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}

	visionModel := pickModel(opts.visionModel, cfg.VisionModel, config.DefaultVisionModel)
	cleanupModel := pickModel(opts.cleanupModel, cfg.CleanupModel, config.DefaultCleanupModel)

	dataDir := opts.dataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	dataDir = config.ExpandPath(dataDir)

	// === LOCATE PDFS ===

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("cannot create data directory: %w", err)
		}
		fmt.Fprintf(env.Stderr, "Created data directory: %s\n", dataDir)
		fmt.Fprintln(env.Stderr, "Place your PDF files there and run scan again.")
		return nil
	}

	pdfFiles, err := findPDFFiles(dataDir)
	if err != nil {
		return err
	}
	if len(pdfFiles) == 0 {
		fmt.Fprintf(env.Stderr, "No PDF files found in %s\n", dataDir)
		return nil
	}

	// === PROCESS FILES ===

	successful, failed := 0, 0
	for _, pdfFile := range pdfFiles {
		if err := ctx.Err(); err != nil {
			return err
		}

		pdfPath := filepath.Join(dataDir, pdfFile)
		outputPath := uniqueOutputPath(deriveOutputPath(pdfPath))

		fmt.Fprintf(env.Stderr, "\nProcessing: %s\n", pdfFile)

		pagesUsage, cleanupUsage, finalText, err := convertDocument(ctx, env, convertJob{
			inputPath:    pdfPath,
			apiKey:       apiKey,
			pdftoppmPath: pdftoppmPath,
			visionModel:  visionModel,
			cleanupModel: cleanupModel,
			parallel:     opts.parallel,
		})
		if err != nil {
			// Cancellation aborts the whole scan.
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(env.Stderr, "Error processing %s: %v\n", pdfFile, err)
			failed++
			continue
		}

		if err := writeFileAtomic(outputPath, finalText); err != nil {
			fmt.Fprintf(env.Stderr, "Error writing %s: %v\n", outputPath, err)
			failed++
			continue
		}

		reportUsage(env.Stderr, pagesUsage, cleanupUsage)
		fmt.Fprintf(env.Stderr, "Created: %s\n", filepath.Base(outputPath))
		successful++
	}

	// === SUMMARY ===

	fmt.Fprintf(env.Stderr, "\nScan complete: %d converted", successful)
	if failed > 0 {
		fmt.Fprintf(env.Stderr, ", %d failed", failed)
	}
	fmt.Fprintln(env.Stderr)

	return nil
}

// findPDFFiles returns the names of all PDF files directly inside dir,
// sorted for a stable processing order.
func findPDFFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read data directory: %w", err)
	}

	var pdfs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) == ".pdf" {
			pdfs = append(pdfs, entry.Name())
		}
	}
	sort.Strings(pdfs)
	return pdfs, nil
}
