// Package parse turns raw generation output into documents.
package parse

import (
	"strings"

	"recontext/internal/document"
	"recontext/internal/domain"
)

// Strip removes markdown code fences wrapping raw model output: a leading
// ``` line (with or without a language tag) and the last ``` marker. It
// runs to a fixpoint, so Strip(Strip(x)) == Strip(x) for any input. JSON
// payloads are untouched since none can begin with a backtick.
func Strip(text string) string {
	for {
		next := stripOnce(text)
		if next == text {
			return text
		}
		text = next
	}
}

func stripOnce(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	first := strings.IndexByte(text, '\n')
	if first == -1 {
		return text
	}
	last := strings.LastIndex(text, "```")
	if last <= first {
		// Opening fence without a closing one.
		return strings.TrimSpace(text[first+1:])
	}
	return strings.TrimSpace(text[first+1 : last])
}

// Output strips fence wrappers from raw model output and parses what
// remains. The caller keeps the raw text in its attempt history, so errors
// here only describe why the payload did not parse.
func Output(raw string) (*document.Document, error) {
	cleaned := Strip(raw)
	if cleaned == "" {
		return nil, domain.NewEngineError(domain.ErrMalformedDocument.Code, "output is empty after stripping")
	}
	return document.Parse([]byte(cleaned))
}
