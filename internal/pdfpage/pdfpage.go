// Package pdfpage opens PDF documents and classifies each page as
// text-dominant or image-dominant.
//
// Classification drives request routing: text-dominant pages are sent to the
// LLM as extracted text, image-dominant pages as rendered images. The
// decision uses one heuristic, the image-to-page area ratio.
package pdfpage

import (
	"errors"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// ErrNoPages indicates the PDF contains no pages.
var ErrNoPages = errors.New("pdf has no pages")

// Kind is the processing route for a page.
type Kind int

const (
	// KindText routes the page through the text completion path.
	KindText Kind = iota

	// KindVision routes the page through the vision completion path.
	KindVision
)

// String returns a short label for logging.
func (k Kind) String() string {
	if k == KindVision {
		return "vision"
	}
	return "text"
}

// Page is the classification result for a single page.
type Page struct {
	// Number is the 1-indexed page number.
	Number int

	// Kind is the chosen processing route.
	Kind Kind

	// Text is the extracted text content. Empty for vision pages with no
	// extractable text.
	Text string
}

// Source is the page-classification collaborator consumed by the processor.
// Implementations must return pages in stable 1-indexed order.
type Source interface {
	// TotalPages returns the page count.
	TotalPages() int

	// Page classifies the given 1-indexed page and returns its text.
	Page(n int) (Page, error)

	// Close releases the underlying file.
	Close() error
}

// Compile-time interface compliance check.
var _ Source = (*Document)(nil)

// Document is the ledongthuc/pdf backed Source implementation.
type Document struct {
	f         *os.File
	r         *pdf.Reader
	threshold float64
}

// Open opens a PDF file for classification. threshold is the image-to-page
// area ratio above which a page is considered image-dominant.
func Open(path string, threshold float64) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	if r.NumPage() == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNoPages)
	}
	return &Document{f: f, r: r, threshold: threshold}, nil
}

// TotalPages returns the page count.
func (d *Document) TotalPages() int {
	return d.r.NumPage()
}

// Page classifies a single page:
//   - no extractable text: vision
//   - no images: text
//   - image area below threshold of page area: text
//   - otherwise: vision
func (d *Document) Page(n int) (Page, error) {
	if n < 1 || n > d.r.NumPage() {
		return Page{}, fmt.Errorf("page %d out of range [1,%d]", n, d.r.NumPage())
	}

	p := d.r.Page(n)
	result := Page{Number: n}

	// Extraction failures are treated as "no text": the page still gets
	// processed, just via the vision path.
	text, err := p.GetPlainText(nil)
	if err != nil || text == "" {
		result.Kind = KindVision
		return result, nil
	}
	result.Text = text

	imageArea := sumImageArea(p)
	if imageArea == 0 {
		result.Kind = KindText
		return result, nil
	}

	pageArea := mediaBoxArea(p)
	if pageArea > 0 && imageArea/pageArea < d.threshold {
		result.Kind = KindText
		return result, nil
	}

	result.Kind = KindVision
	return result, nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.f.Close()
}

// sumImageArea sums the areas of image XObjects in the page resources.
// Image dimensions are in pixels; we treat them as points (1px = 1pt at
// 72dpi), which is the native placement size. Placement scaling from the
// content stream is not applied; the ratio is a heuristic, not geometry.
func sumImageArea(p pdf.Page) float64 {
	resources := p.V.Key("Resources")
	if resources.IsNull() {
		return 0
	}
	xobjects := resources.Key("XObject")
	if xobjects.IsNull() {
		return 0
	}

	var area float64
	for _, name := range xobjects.Keys() {
		xo := xobjects.Key(name)
		if xo.Key("Subtype").Name() != "Image" {
			continue
		}
		w := float64(xo.Key("Width").Int64())
		h := float64(xo.Key("Height").Int64())
		area += w * h
	}
	return area
}

// mediaBoxArea returns the page area in square points, walking the Parent
// chain because MediaBox is often inherited from the page tree root.
func mediaBoxArea(p pdf.Page) float64 {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		mb := v.Key("MediaBox")
		if mb.IsNull() || mb.Len() != 4 {
			continue
		}
		width := mb.Index(2).Float64() - mb.Index(0).Float64()
		height := mb.Index(3).Float64() - mb.Index(1).Float64()
		return width * height
	}
	return 0
}
