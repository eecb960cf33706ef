package cleanup

import (
	"strings"

	"github.com/FlyingJaffa/pdf2markdown/internal/token"
)

// splitDocument divides a document into chunks at paragraph boundaries.
// Each chunk targets maxTokens of estimated content but respects paragraph
// boundaries: a paragraph is never split, so a single paragraph larger than
// the budget becomes its own oversized chunk.
//
// Joining the returned chunks with "\n\n" reconstructs the document exactly;
// no paragraph is dropped, duplicated, or reordered.
func splitDocument(document string, maxTokens int, est *token.Estimator) []string {
	paragraphs := strings.Split(document, "\n\n")

	var chunks []string
	var current []string
	currentTokens := 0

	for _, para := range paragraphs {
		paraTokens := est.EstimateText(para)

		// Close the running chunk before it would overflow. An empty
		// running chunk is never closed: the oversized paragraph goes in
		// on its own instead.
		if currentTokens+paraTokens > maxTokens && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = nil
			currentTokens = 0
		}

		current = append(current, para)
		currentTokens += paraTokens
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}

	return chunks
}
