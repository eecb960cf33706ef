// Package cleanup runs the final coherence pass over the assembled document.
//
// Small documents go through one cleanup completion. Documents whose cleanup
// prompt exceeds the chunk budget are split at paragraph boundaries, cleaned
// chunk by chunk with part-of-N context, and rejoined in original order. A
// failing request never loses content: the single-shot path falls back to the
// raw document behind an error banner, and a failing chunk is passed through
// unprocessed while the rest of the document is still cleaned.
package cleanup

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/FlyingJaffa/pdf2markdown/internal/apierr"
	"github.com/FlyingJaffa/pdf2markdown/internal/prompt"
	"github.com/FlyingJaffa/pdf2markdown/internal/token"
)

// Default request configuration.
const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 4096

	// requestTemperature is fixed at zero for deterministic output.
	requestTemperature = 0

	// defaultMaxChunkTokens keeps the cleanup prompt inside an 8K context
	// window with a safety margin for the response.
	defaultMaxChunkTokens = 6000

	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// completer is an internal interface for OpenAI chat completion.
// *openai.Client implements this implicitly.
// This allows injecting mocks in tests.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Outcome tells how one chunk (or the whole single-shot document) was
// produced.
type Outcome int

const (
	// OutcomeCleaned means the model returned cleaned text.
	OutcomeCleaned Outcome = iota

	// OutcomeFallback means the request failed and the original text was
	// substituted unmodified.
	OutcomeFallback
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeCleaned:
		return "cleaned"
	case OutcomeFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Chunk is the per-chunk record of a chunked cleanup run.
type Chunk struct {
	// Index is the 1-based chunk position.
	Index int

	// Text is the chunk's contribution to the final document: cleaned
	// output, or the original chunk text on fallback.
	Text string

	// Outcome distinguishes cleaned from fallback chunks.
	Outcome Outcome

	// Err is the request failure that caused a fallback; nil when cleaned.
	Err error

	// Usage is this chunk's token accounting. Zero on fallback: no request
	// tokens were consumed.
	Usage token.Usage
}

// Result is the terminal state of one cleanup run.
type Result struct {
	// Text is the final document.
	Text string

	// Usage sums token accounting over all requests that succeeded.
	Usage token.Usage

	// Chunks holds the per-chunk records of a chunked run; nil when the
	// document fit in a single request.
	Chunks []Chunk

	// Degraded reports whether any part of the output fell back to
	// unprocessed text.
	Degraded bool
}

// ProgressFunc reports cleanup progress. phase is "cleanup" for the
// single-shot path and "chunk" while chunked cleanup is running.
type ProgressFunc func(phase string, current, total int)

// Pipeline decides between single-shot and chunked cleanup and executes the
// chosen path.
type Pipeline struct {
	client         completer
	estimator      *token.Estimator
	model          string
	maxTokens      int
	maxChunkTokens int
	maxRetries     int
	baseDelay      time.Duration
	maxDelay       time.Duration
	maxParallel    int
	onProgress     ProgressFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithModel sets the cleanup model.
func WithModel(model string) Option {
	return func(pl *Pipeline) {
		if model != "" {
			pl.model = model
		}
	}
}

// WithMaxTokens sets the response token cap.
func WithMaxTokens(n int) Option {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.maxTokens = n
		}
	}
}

// WithMaxChunkTokens sets the estimated-token budget per cleanup request.
func WithMaxChunkTokens(n int) Option {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.maxChunkTokens = n
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts per request.
func WithMaxRetries(n int) Option {
	return func(pl *Pipeline) {
		if n >= 0 {
			pl.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) Option {
	return func(pl *Pipeline) {
		if base > 0 {
			pl.baseDelay = base
		}
		if max > 0 {
			pl.maxDelay = max
		}
	}
}

// WithMaxParallel sets the number of chunk requests in flight at once.
// Chunks are independent; reassembly always restores original order.
func WithMaxParallel(n int) Option {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.maxParallel = n
		}
	}
}

// WithProgress sets a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(pl *Pipeline) {
		pl.onProgress = fn
	}
}

// WithEstimator sets a custom token estimator.
func WithEstimator(e *token.Estimator) Option {
	return func(pl *Pipeline) {
		if e != nil {
			pl.estimator = e
		}
	}
}

// withCompleter sets a custom chat completer (for testing).
func withCompleter(c completer) Option {
	return func(pl *Pipeline) { pl.client = c }
}

// NewPipeline creates a cleanup Pipeline with the given client.
// Use options to customize model, budgets, retry, and parallelism.
func NewPipeline(client *openai.Client, opts ...Option) *Pipeline {
	pl := &Pipeline{
		client:         client,
		estimator:      token.NewEstimator(),
		model:          defaultModel,
		maxTokens:      defaultMaxTokens,
		maxChunkTokens: defaultMaxChunkTokens,
		maxRetries:     defaultMaxRetries,
		baseDelay:      defaultBaseDelay,
		maxDelay:       defaultMaxDelay,
		maxParallel:    1,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Run cleans up the assembled document. Request failures degrade inside the
// result and are never returned as errors; the only error Run reports is
// context cancellation mid-run.
func (pl *Pipeline) Run(ctx context.Context, document string) (Result, error) {
	promptTokens := pl.estimator.EstimateText(prompt.Cleanup(document))
	if promptTokens <= pl.maxChunkTokens {
		return pl.singleShot(ctx, document, promptTokens)
	}
	return pl.chunked(ctx, document)
}

// singleShot cleans the whole document in one request. On failure the raw
// document is preserved verbatim behind an error banner.
func (pl *Pipeline) singleShot(ctx context.Context, document string, promptTokens int) (Result, error) {
	if pl.onProgress != nil {
		pl.onProgress("cleanup", 1, 1)
	}

	content, actual, err := pl.complete(ctx, prompt.Cleanup(document))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{
			Text:     fmt.Sprintf("Error in tidy up: %v\n\nRaw document content:\n\n%s", err, document),
			Degraded: true,
		}, nil
	}

	return Result{
		Text:  content,
		Usage: token.Usage{Estimated: promptTokens, Actual: actual},
	}, nil
}

// chunked splits the document, cleans each chunk with part-of-N context, and
// rejoins the outputs in original order. A failing chunk passes through
// unprocessed with zero usage.
func (pl *Pipeline) chunked(ctx context.Context, document string) (Result, error) {
	chunks := splitDocument(document, pl.maxChunkTokens, pl.estimator)
	total := len(chunks)

	records := make([]Chunk, total)

	// Sequential runs issue chunk requests in strict chunk order;
	// goroutines racing for a single semaphore slot would not guarantee
	// that.
	if pl.maxParallel == 1 {
		for i, chunkText := range chunks {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			if pl.onProgress != nil {
				pl.onProgress("chunk", i+1, total)
			}
			records[i] = pl.cleanChunk(ctx, chunkText, i+1, total)
			if records[i].Outcome == OutcomeFallback && ctx.Err() != nil {
				// Cancellation is not a degraded-output condition.
				return Result{}, ctx.Err()
			}
		}
		return reassemble(records), nil
	}

	// Semaphore channel for concurrency control.
	sem := make(chan struct{}, pl.maxParallel)

	g, gctx := errgroup.WithContext(ctx)

	for i, chunkText := range chunks {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			if err := gctx.Err(); err != nil {
				return err
			}

			if pl.onProgress != nil {
				pl.onProgress("chunk", i+1, total)
			}

			records[i] = pl.cleanChunk(gctx, chunkText, i+1, total)
			if records[i].Outcome == OutcomeFallback && gctx.Err() != nil {
				// Cancellation is not a degraded-output condition.
				return gctx.Err()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	return reassemble(records), nil
}

// reassemble rejoins finished chunk records in original order and sums
// their usage.
func reassemble(records []Chunk) Result {
	texts := make([]string, len(records))
	var result Result
	for i, rec := range records {
		texts[i] = rec.Text
		result.Usage.Add(rec.Usage)
		if rec.Outcome == OutcomeFallback {
			result.Degraded = true
		}
	}
	result.Text = strings.Join(texts, "\n\n")
	result.Chunks = records
	return result
}

// cleanChunk issues one chunk request. The estimated count covers the raw
// chunk content; failed chunks report zero usage since no request tokens
// were consumed.
func (pl *Pipeline) cleanChunk(ctx context.Context, chunkText string, index, total int) Chunk {
	content, actual, err := pl.complete(ctx, prompt.CleanupChunk(chunkText, index, total))
	if err != nil {
		return Chunk{
			Index:   index,
			Text:    chunkText,
			Outcome: OutcomeFallback,
			Err:     err,
		}
	}

	return Chunk{
		Index:   index,
		Text:    content,
		Outcome: OutcomeCleaned,
		Usage: token.Usage{
			Estimated: pl.estimator.EstimateText(chunkText),
			Actual:    actual,
		},
	}
}

// complete executes one chat completion with exponential backoff.
func (pl *Pipeline) complete(ctx context.Context, userPrompt string) (string, int, error) {
	cfg := apierr.RetryConfig{
		MaxRetries: pl.maxRetries,
		BaseDelay:  pl.baseDelay,
		MaxDelay:   pl.maxDelay,
	}

	req := openai.ChatCompletionRequest{
		Model:     pl.model,
		MaxTokens: pl.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		Temperature: requestTemperature,
	}

	type completion struct {
		content string
		actual  int
	}

	result, err := apierr.RetryWithBackoff(ctx, cfg, func() (completion, error) {
		resp, err := pl.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return completion{}, apierr.ClassifyOpenAI(err)
		}
		if len(resp.Choices) == 0 {
			return completion{}, ErrNoResponse
		}
		return completion{
			content: resp.Choices[0].Message.Content,
			actual:  resp.Usage.TotalTokens,
		}, nil
	}, apierr.IsRetryableOpenAI)

	return result.content, result.actual, err
}
