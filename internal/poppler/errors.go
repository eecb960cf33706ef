package poppler

import "errors"

// ErrNotFound indicates the pdftoppm binary is not installed.
var ErrNotFound = errors.New("pdftoppm not found")

// ErrRenderFailed indicates a page could not be rasterized.
var ErrRenderFailed = errors.New("page rendering failed")
