package process

// Exports for testing. These allow black-box tests to inject dependencies
// without modifying the public API.

// NewTestProcessor creates a Processor with a mock chat completer.
// This allows testing without a real OpenAI client.
func NewTestProcessor(client completer, renderer PageRenderer, opts ...Option) *Processor {
	return NewProcessor(nil, renderer, append(opts, withCompleter(client))...)
}
