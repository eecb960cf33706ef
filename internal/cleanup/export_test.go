package cleanup

import "github.com/FlyingJaffa/pdf2markdown/internal/token"

// Exports for testing. These allow black-box tests to inject dependencies
// without modifying the public API.

// NewTestPipeline creates a Pipeline with a mock chat completer.
// This allows testing without a real OpenAI client.
func NewTestPipeline(client completer, opts ...Option) *Pipeline {
	return NewPipeline(nil, append(opts, withCompleter(client))...)
}

// SplitDocument exposes the chunk partitioner for unit testing.
func SplitDocument(document string, maxTokens int, est *token.Estimator) []string {
	return splitDocument(document, maxTokens, est)
}
