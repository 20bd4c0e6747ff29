package corpus

import "strings"

// Article status labels used in payloads and chunk headers.
const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
)

// EffectiveText decides which text field is authoritative for an article given
// its cancellation state. A canceled article whose original text was preserved
// separately keeps that original text; everything else uses the current
// content. Missing fields are treated as empty strings, never as an error.
func EffectiveText(a Article) (status, text string) {
	status = StatusActive
	if a.IsCanceled.Bool() {
		status = StatusCanceled
	}

	text = a.Content
	if status == StatusCanceled && strings.TrimSpace(a.OriginalContent) != "" {
		text = a.OriginalContent
	}

	return status, strings.TrimSpace(text)
}
