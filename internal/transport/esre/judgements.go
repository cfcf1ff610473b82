package esre

import (
	"context"
	"net/http"
	"net/url"
	"time"

	domdoc "github.com/kailas-cloud/esre-console/internal/domain/document"
	"github.com/kailas-cloud/esre-console/internal/domain/judgement"
	"github.com/kailas-cloud/esre-console/internal/domain/judgement/query"
	"github.com/kailas-cloud/esre-console/internal/domain/project"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
)

// Compile-time check: Client can back a rating controller.
var _ rating.Store = (*Client)(nil)

type judgementHit struct {
	Doc struct {
		ID     string         `json:"_id"`
		Index  string         `json:"_index"`
		Source map[string]any `json:"_source"`
	} `json:"doc"`
	Rating    rating.Value `json:"rating"`
	Author    string       `json:"@author"`
	Timestamp *time.Time   `json:"@timestamp"`
}

// SearchJudgements runs a judgement search for one scenario.
func (c *Client) SearchJudgements(
	ctx context.Context, projectID, scenarioID string, req query.Request,
) (judgement.Result, error) {
	if err := require("project id", projectID); err != nil {
		return judgement.Result{}, err
	}
	if err := require("scenario id", scenarioID); err != nil {
		return judgement.Result{}, err
	}
	if err := require("index pattern", req.IndexPattern); err != nil {
		return judgement.Result{}, err
	}

	path := projectPath(projectID) + "/scenarios/" + segment(scenarioID) + "/judgements/_search"
	var env hitsEnvelope[judgementHit]
	if err := c.do(ctx, "judgements.search", http.MethodPost, path, nil, req, &env); err != nil {
		return judgement.Result{}, err
	}

	hits := make([]judgement.Hit, 0, len(env.Hits.Hits))
	for _, h := range env.Hits.Hits {
		hits = append(hits, judgement.Hit{
			Doc:       domdoc.Reconstruct(h.Doc.ID, h.Doc.Index, h.Doc.Source),
			Rating:    h.Rating,
			Author:    h.Author,
			Timestamp: h.Timestamp,
		})
	}
	return judgement.Result{Hits: hits, Total: env.Hits.Total.Value}, nil
}

// UpsertJudgement writes one rating.
func (c *Client) UpsertJudgement(ctx context.Context, projectID string, j judgement.Judgement) error {
	key := rating.Key{Project: projectID, Scenario: j.ScenarioID, Index: j.Index, DocID: j.DocID}
	if err := key.Validate(); err != nil {
		return err
	}
	return c.do(ctx, "judgements.upsert", http.MethodPut, projectPath(projectID)+"/judgements", nil, j, nil)
}

// UpsertRating writes a human rating for the key.
func (c *Client) UpsertRating(ctx context.Context, key rating.Key, n int) error {
	return c.UpsertJudgement(ctx, key.Project, judgement.New(key, n, ""))
}

// DeleteRating removes the rating for the key.
func (c *Client) DeleteRating(ctx context.Context, key rating.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	q := url.Values{
		"scenario_id": {key.Scenario},
		"index":       {key.Index},
		"doc_id":      {key.DocID},
	}
	return c.do(ctx, "judgements.delete", http.MethodDelete, projectPath(key.Project)+"/judgements", q, nil, nil)
}

// RunEvaluation starts an evaluation run and returns its id without waiting for it.
func (c *Client) RunEvaluation(ctx context.Context, projectID string, req project.RunRequest) (string, error) {
	if err := require("project id", projectID); err != nil {
		return "", err
	}
	var resp struct {
		ID string `json:"_id"`
	}
	path := projectPath(projectID) + "/evaluations/_run"
	if err := c.do(ctx, "evaluations.run", http.MethodPost, path, nil, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}
