// Package token provides heuristic token estimation for LLM requests and
// accumulation of estimated-vs-actual usage over a run.
//
// Estimates are derived from character counts and fixed per-image constants.
// They are used only for chunk-budget decisions and usage reporting, never
// for billing-accurate accounting.
package token

import (
	"math"
)

// Estimation constants calibrated against observed gpt-4o usage.
const (
	// DefaultCharsPerToken is the rough characters-per-token ratio for
	// English text (1 token ~ 4 characters).
	DefaultCharsPerToken = 4

	// Base token costs per image detail level.
	highDetailBase     = 525
	standardDetailBase = 150

	// imageMultiplier corrects for consistent underestimation of image
	// processing cost (+75%).
	imageMultiplier = 1.75
)

// Detail is the image detail level sent with vision requests.
type Detail int

const (
	// DetailStandard is the low-cost image detail level.
	DetailStandard Detail = iota

	// DetailHigh is the high-resolution image detail level.
	DetailHigh
)

// ParseDetail maps a detail level string to a Detail.
// Unknown values fall back to DetailStandard.
func ParseDetail(s string) Detail {
	if s == "high" {
		return DetailHigh
	}
	return DetailStandard
}

// String returns the wire-format detail level string.
func (d Detail) String() string {
	if d == DetailHigh {
		return "high"
	}
	return "standard"
}

// base returns the base token cost for the detail level.
func (d Detail) base() int {
	if d == DetailHigh {
		return highDetailBase
	}
	return standardDetailBase
}

// Estimator estimates token counts for text and image content.
// The zero value is not valid; use NewEstimator.
type Estimator struct {
	charsPerToken int
}

// EstimatorOption configures an Estimator.
type EstimatorOption func(*Estimator)

// WithCharsPerToken overrides the characters-per-token ratio.
func WithCharsPerToken(n int) EstimatorOption {
	return func(e *Estimator) {
		if n > 0 {
			e.charsPerToken = n
		}
	}
}

// NewEstimator creates an Estimator with the given options.
func NewEstimator(opts ...EstimatorOption) *Estimator {
	e := &Estimator{charsPerToken: DefaultCharsPerToken}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EstimateText estimates the token count of a text string using integer
// (floor) division by the characters-per-token ratio.
func (e *Estimator) EstimateText(text string) int {
	return len(text) / e.charsPerToken
}

// EstimateImage estimates the token cost of a single image at the given
// detail level.
func (e *Estimator) EstimateImage(d Detail) int {
	return int(math.Round(float64(d.base()) * imageMultiplier))
}

// EstimateImagePage estimates the combined cost of one high-detail image
// plus its instruction prompt, as issued for an image-dominant page.
func (e *Estimator) EstimateImagePage(prompt string) int {
	return int(math.Round(float64(highDetailBase+e.EstimateText(prompt)) * imageMultiplier))
}

// Usage accumulates estimated and actual token counts over a run.
// It is owned by the pipeline driver and updated only between requests.
type Usage struct {
	Estimated int
	Actual    int
}

// Add accumulates another usage sample into u.
func (u *Usage) Add(other Usage) {
	u.Estimated += other.Estimated
	u.Actual += other.Actual
}

// Difference returns the percentage and absolute difference between an
// estimated and an actual token count. A non-positive estimate yields
// (0.0, 0) rather than dividing by zero.
func Difference(estimated, actual int) (percent float64, absolute int) {
	if estimated <= 0 {
		return 0.0, 0
	}
	absolute = actual - estimated
	percent = float64(absolute) / float64(estimated) * 100
	return percent, absolute
}
