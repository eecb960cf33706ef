package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/FlyingJaffa/pdf2markdown/internal/format"
	"github.com/FlyingJaffa/pdf2markdown/internal/token"
)

// warnNonMarkdownExtension writes a warning to w if path has an extension
// that is not .md. This alerts users that the output will be Markdown
// regardless of the file extension they specified.
func warnNonMarkdownExtension(w io.Writer, path string) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" && ext != ".md" {
		_, _ = fmt.Fprintf(w, "Warning: output is Markdown regardless of %s extension\n", ext)
	}
}

// uniqueOutputPath returns path if no file exists there, otherwise the first
// "name 2.md", "name 3.md", ... variant that is free.
func uniqueOutputPath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)

	for counter := 2; ; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s %d%s", base, counter, ext))
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// writeFileAtomic writes content to path atomically.
// It fails if the file already exists (O_EXCL), preventing accidental overwrites.
// On write failure, the partial file is removed.
func writeFileAtomic(path, content string) error {
	// #nosec G302 G304 -- user-specified output file with standard permissions
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("output file already exists: %s: %w", path, ErrOutputExists)
		}
		return fmt.Errorf("cannot create output file: %w", err)
	}

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		if _, err := f.WriteString(content); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}()

	if writeErr != nil {
		_ = os.Remove(path)
		return writeErr
	}

	return nil
}

// reportUsage writes the token summary for one conversion to w.
func reportUsage(w io.Writer, pages, cleanup token.Usage) {
	var total token.Usage
	total.Add(pages)
	total.Add(cleanup)

	_, _ = fmt.Fprintf(w, "Token usage: pages %s estimated / %s actual, cleanup %s estimated / %s actual\n",
		format.Count(pages.Estimated), format.Count(pages.Actual),
		format.Count(cleanup.Estimated), format.Count(cleanup.Actual))
	_, _ = fmt.Fprintf(w, "Estimate accuracy: %s\n",
		format.TokenStats(total.Estimated, total.Actual))
}
