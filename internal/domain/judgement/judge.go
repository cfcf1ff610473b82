package judgement

import "github.com/kailas-cloud/esre-console/internal/domain/rating"

// Prompt is one relevance question for a model judge.
type Prompt struct {
	// Intent describes what the searcher wants, e.g. the scenario name and values.
	Intent   string
	Document string
	Scale    rating.Scale
}

// Verdict is a model judge's answer.
type Verdict struct {
	Rating           int
	Reason           string
	PromptTokens     int
	CompletionTokens int
}
