package poppler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// defaultDPI is the rasterization resolution. 150dpi keeps page images
// well under the vision API size limits while remaining legible.
const defaultDPI = 150

// runFn is the function type for running pdftoppm and capturing stderr.
type runFn func(ctx context.Context, path string, args []string) (string, error)

// Renderer rasterizes single PDF pages to PNG via pdftoppm.
type Renderer struct {
	pdftoppmPath string
	dpi          int
	run          runFn
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithDPI sets the rasterization resolution.
func WithDPI(dpi int) RendererOption {
	return func(r *Renderer) {
		if dpi > 0 {
			r.dpi = dpi
		}
	}
}

// WithRun sets a custom run function (for testing).
func WithRun(fn runFn) RendererOption {
	return func(r *Renderer) { r.run = fn }
}

// NewRenderer creates a Renderer using the resolved pdftoppm binary.
func NewRenderer(pdftoppmPath string, opts ...RendererOption) *Renderer {
	r := &Renderer{
		pdftoppmPath: pdftoppmPath,
		dpi:          defaultDPI,
		run:          defaultRun,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderPage rasterizes the given 1-indexed page to PNG bytes.
// pdftoppm writes to files, so the render goes through a temp directory
// that is removed before returning.
func (r *Renderer) RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "pdf2md-page-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	prefix := filepath.Join(tmpDir, "page")
	args := []string{
		"-png",
		"-r", strconv.Itoa(r.dpi),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		pdfPath,
		prefix,
	}

	if output, err := r.run(ctx, r.pdftoppmPath, args); err != nil {
		return nil, fmt.Errorf("%w: page %d: %v\nOutput: %s", ErrRenderFailed, page, err, output)
	}

	data, err := readRenderedPage(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrRenderFailed, page, err)
	}
	return data, nil
}

// readRenderedPage finds and reads the single PNG pdftoppm produced.
// The output filename varies with page-number zero padding across poppler
// versions (page-1.png, page-01.png, ...), so glob instead of guessing.
func readRenderedPage(dir string) ([]byte, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	if len(matches) != 1 {
		return nil, fmt.Errorf("expected one rendered image, found %d", len(matches))
	}
	return os.ReadFile(matches[0]) // #nosec G304 -- path is an internal temp file
}

// defaultRun is the production implementation. pdftoppm writes diagnostics
// to stderr; the output is returned for error messages.
func defaultRun(ctx context.Context, path string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stderr.String(), err
}
