// Package prompt builds the instruction prompts sent with LLM requests.
//
// Prompts are versioned with the binary; update requires rebuild.
package prompt

import "fmt"

// interpretationPrompt instructs the model to transcribe one PDF page
// (rendered as an image or extracted as text) into markdown. It is shared
// by the vision and text page paths.
const interpretationPrompt = `
1. Convert the image to a markdown document, being aware that it forms part of a larger multipage document.
2. Preserve the original formatting of the document where possible.
3. Ensure tables are scanned and converted to markdown tables.
4. For organisational charts or diagrams, attempt to create a text based representation of the diagram that ` + `
` + "```" + `
Manager 1
    ├── Sub manager 1
        ├── Sub manager 4
` + "```" + `
5. Don't add any text that is not in the original document.
6. Look for any page numbers and add them to the top of the page with the text "Page X"
7. Look for any headers or footers that indicate the title or effective date of the document. Only include the title at the top of the text.
    `

// Interpretation returns the page transcription prompt.
func Interpretation() string {
	return interpretationPrompt
}

// Cleanup wraps the assembled document with the final cleanup instructions.
func Cleanup(document string) string {
	return fmt.Sprintf(`
This document has been created by an LLM by scanning images of a PDF and forms part of a larger document.
Ensure the formatting is coherent and the structure is correct.
Remove any mention of "markdown" from the top and don't add anything new.
%s
`, document)
}

// CleanupChunk wraps one chunk of a large document with the cleanup
// instructions plus part-of-N context so the model knows the chunk is not
// the whole document.
func CleanupChunk(chunk string, index, total int) string {
	return Cleanup(chunk) + fmt.Sprintf("\nThis is part %d of %d.", index, total)
}

// TextPage wraps extracted page text with the interpretation instructions
// and page position context.
func TextPage(text string, pageNumber, totalPages int) string {
	return fmt.Sprintf(`Please process this text from page %d of %d.
%s

TEXT CONTENT:
%s`, pageNumber, totalPages, interpretationPrompt, text)
}
