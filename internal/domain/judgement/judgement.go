// Package judgement holds relevance judgement search results.
package judgement

import (
	"strings"
	"time"

	domdoc "github.com/kailas-cloud/esre-console/internal/domain/document"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
)

// AIAuthorPrefix marks judgements produced by a model.
const AIAuthorPrefix = "ai:"

// Hit is one document in a judgement search, with its current rating.
type Hit struct {
	Doc       domdoc.Document
	Rating    rating.Value
	Author    string
	Timestamp *time.Time
}

// ByAI reports whether the rating was produced by a model.
func (h *Hit) ByAI() bool { return strings.HasPrefix(h.Author, AIAuthorPrefix) }

// Result is one page of judgement search hits.
type Result struct {
	Hits  []Hit
	Total int
}

// AIAuthor returns the author tag for a model.
func AIAuthor(model string) string { return AIAuthorPrefix + model }

// Judgement is the rating write sent to the backend.
type Judgement struct {
	ScenarioID string `json:"scenario_id"`
	Index      string `json:"index"`
	DocID      string `json:"doc_id"`
	Rating     int    `json:"rating"`
	Author     string `json:"@author,omitempty"`
}

// New builds a judgement for a rating key. An empty author means a human rater.
func New(key rating.Key, n int, author string) Judgement {
	return Judgement{
		ScenarioID: key.Scenario,
		Index:      key.Index,
		DocID:      key.DocID,
		Rating:     n,
		Author:     author,
	}
}
