// Package process issues one LLM completion per PDF page and assembles the
// per-page transcriptions into a single document.
//
// Text-dominant pages are sent as extracted text, image-dominant pages as
// rendered PNG images through the vision path. A failing page degrades to an
// error banner in the output instead of aborting the run.
package process

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/FlyingJaffa/pdf2markdown/internal/apierr"
	"github.com/FlyingJaffa/pdf2markdown/internal/pdfpage"
	"github.com/FlyingJaffa/pdf2markdown/internal/prompt"
	"github.com/FlyingJaffa/pdf2markdown/internal/token"
)

// Default request configuration.
const (
	defaultVisionModel = "gpt-4o"
	defaultMaxTokens   = 4096

	// requestTemperature is fixed at zero for deterministic output.
	requestTemperature = 0

	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// MaxRecommendedParallel is the recommended upper limit for concurrent
// page requests. Higher values may trigger rate limiting.
const MaxRecommendedParallel = 10

// completer is an internal interface for OpenAI chat completion.
// *openai.Client implements this implicitly.
// This allows injecting mocks in tests.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Result holds the transcription of one page together with its token
// accounting. Created once per page; immutable thereafter.
type Result struct {
	// Content is the markdown transcription (or an error banner when the
	// page request failed).
	Content string

	// Estimated is the heuristic token count for the request and response.
	Estimated int

	// Actual is the token usage reported by the API; 0 when the request
	// failed or the API omitted usage.
	Actual int
}

// PageRenderer rasterizes one PDF page to PNG bytes.
// poppler.Renderer implements this.
type PageRenderer interface {
	RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

// Processor converts classified PDF pages into markdown via chat completions.
type Processor struct {
	client     completer
	renderer   PageRenderer
	estimator  *token.Estimator
	model      string
	maxTokens  int
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option configures a Processor.
type Option func(*Processor)

// WithModel sets the vision/text model for page processing.
func WithModel(model string) Option {
	return func(p *Processor) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxTokens sets the response token cap.
func WithMaxTokens(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) Option {
	return func(p *Processor) {
		if base > 0 {
			p.baseDelay = base
		}
		if max > 0 {
			p.maxDelay = max
		}
	}
}

// WithEstimator sets a custom token estimator.
func WithEstimator(e *token.Estimator) Option {
	return func(p *Processor) {
		if e != nil {
			p.estimator = e
		}
	}
}

// withCompleter sets a custom chat completer (for testing).
func withCompleter(c completer) Option {
	return func(p *Processor) { p.client = c }
}

// NewProcessor creates a Processor with the given client and page renderer.
// Use options to customize model, token limits, and retry behavior.
func NewProcessor(client *openai.Client, renderer PageRenderer, opts ...Option) *Processor {
	p := &Processor{
		client:     client,
		renderer:   renderer,
		estimator:  token.NewEstimator(),
		model:      defaultVisionModel,
		maxTokens:  defaultMaxTokens,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessPage transcribes one classified page. Request failures degrade to
// an error banner with zero token counts; the error is never propagated.
func (p *Processor) ProcessPage(ctx context.Context, pdfPath string, page pdfpage.Page, totalPages int) Result {
	switch page.Kind {
	case pdfpage.KindVision:
		return p.processVisionPage(ctx, pdfPath, page, totalPages)
	default:
		return p.processTextPage(ctx, page, totalPages)
	}
}

// processTextPage sends extracted page text through the text completion path.
func (p *Processor) processTextPage(ctx context.Context, page pdfpage.Page, totalPages int) Result {
	req := openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt.TextPage(page.Text, page.Number, totalPages),
			},
		},
		Temperature: requestTemperature,
	}

	content, actual, err := p.completeWithRetry(ctx, req)
	if err != nil {
		return pageErrorResult(page.Number, err)
	}

	estimated := p.estimator.EstimateText(page.Text) + p.estimator.EstimateText(content)
	return Result{Content: content, Estimated: estimated, Actual: actual}
}

// processVisionPage renders the page to PNG and sends it through the vision
// path as a high-detail data URL alongside the interpretation prompt.
func (p *Processor) processVisionPage(ctx context.Context, pdfPath string, page pdfpage.Page, totalPages int) Result {
	image, err := p.renderer.RenderPage(ctx, pdfPath, page.Number)
	if err != nil {
		return pageErrorResult(page.Number, err)
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
	req := openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt.Interpretation(),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		Temperature: requestTemperature,
	}

	content, actual, err := p.completeWithRetry(ctx, req)
	if err != nil {
		return pageErrorResult(page.Number, err)
	}

	interp := prompt.Interpretation()
	estimated := p.estimator.EstimateText(interp) +
		p.estimator.EstimateImagePage(interp) +
		p.estimator.EstimateText(content)
	return Result{Content: content, Estimated: estimated, Actual: actual}
}

// completeWithRetry executes one chat completion with exponential backoff.
// Returns the content and the actual total token usage reported by the API.
func (p *Processor) completeWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (string, int, error) {
	cfg := apierr.RetryConfig{
		MaxRetries: p.maxRetries,
		BaseDelay:  p.baseDelay,
		MaxDelay:   p.maxDelay,
	}

	type completion struct {
		content string
		actual  int
	}

	result, err := apierr.RetryWithBackoff(ctx, cfg, func() (completion, error) {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return completion{}, apierr.ClassifyOpenAI(err)
		}
		if len(resp.Choices) == 0 {
			return completion{}, ErrNoResponse
		}
		// Usage may be absent; the zero value already reads as 0 tokens.
		return completion{
			content: resp.Choices[0].Message.Content,
			actual:  resp.Usage.TotalTokens,
		}, nil
	}, apierr.IsRetryableOpenAI)

	return result.content, result.actual, err
}

// pageErrorResult builds the degraded result for a failed page.
// The banner keeps the run going; content for this page is lost but the
// document structure preserves its position.
func pageErrorResult(pageNumber int, err error) Result {
	return Result{
		Content:   fmt.Sprintf("Error processing page %d: %v", pageNumber, err),
		Estimated: 0,
		Actual:    0,
	}
}

// ProgressFunc reports page processing progress.
type ProgressFunc func(page, total int, kind pdfpage.Kind)

// ProcessAll classifies and transcribes every page of the document.
// Pages are classified sequentially (the PDF reader is not safe for
// concurrent use), then processed over a bounded worker pool. Results are
// returned in ascending page order regardless of completion order, and the
// usage total is an exact sum over all pages.
//
// Only context cancellation and classification failures abort the run;
// per-page request failures degrade to error banners.
func (p *Processor) ProcessAll(
	ctx context.Context,
	source pdfpage.Source,
	pdfPath string,
	maxParallel int,
	onProgress ProgressFunc,
) ([]Result, token.Usage, error) {
	total := source.TotalPages()
	if total == 0 {
		return nil, token.Usage{}, nil
	}

	if maxParallel < 1 {
		maxParallel = 1
	}

	pages := make([]pdfpage.Page, total)
	for i := 0; i < total; i++ {
		page, err := source.Page(i + 1)
		if err != nil {
			return nil, token.Usage{}, fmt.Errorf("classify page %d: %w", i+1, err)
		}
		pages[i] = page
	}

	results := make([]Result, total)

	// Sequential runs issue requests in strict page order; goroutines
	// racing for a single semaphore slot would not guarantee that.
	if maxParallel == 1 {
		for i, page := range pages {
			if err := ctx.Err(); err != nil {
				return nil, token.Usage{}, err
			}
			if onProgress != nil {
				onProgress(page.Number, total, page.Kind)
			}
			results[i] = p.ProcessPage(ctx, pdfPath, page, total)
		}
		return collectResults(results)
	}

	// Semaphore channel for concurrency control.
	sem := make(chan struct{}, maxParallel)

	g, ctx := errgroup.WithContext(ctx)

	for i, page := range pages {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			// The select can win the semaphore even when ctx is already
			// cancelled; re-check before spending a request.
			if err := ctx.Err(); err != nil {
				return err
			}

			if onProgress != nil {
				onProgress(page.Number, total, page.Kind)
			}
			results[i] = p.ProcessPage(ctx, pdfPath, page, total)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, token.Usage{}, err
	}

	return collectResults(results)
}

// collectResults sums per-page usage over the finished result slice.
func collectResults(results []Result) ([]Result, token.Usage, error) {
	var usage token.Usage
	for _, r := range results {
		usage.Add(token.Usage{Estimated: r.Estimated, Actual: r.Actual})
	}
	return results, usage, nil
}

// Assemble joins per-page content into one document string in page order,
// separated by single newlines. The assembled document is the input to the
// cleanup pass and is never mutated afterwards.
func Assemble(results []Result) string {
	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Content
	}
	return strings.Join(contents, "\n")
}
