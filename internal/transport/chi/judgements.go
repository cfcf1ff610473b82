package chi

import (
	"net/http"
	"time"

	"github.com/kailas-cloud/esre-console/internal/domain"
	"github.com/kailas-cloud/esre-console/internal/domain/judgement/query"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
	domusage "github.com/kailas-cloud/esre-console/internal/domain/usage"
	aijudgeuc "github.com/kailas-cloud/esre-console/internal/usecase/aijudge"
	judgementuc "github.com/kailas-cloud/esre-console/internal/usecase/judgement"
)

type searchBody struct {
	IndexPattern string `json:"index_pattern"`
	QueryString  string `json:"query_string"`
	Filter       string `json:"filter"`
	Sort         string `json:"sort"`
}

// params applies the filter before the sort so that a rating sort can
// still narrow an "all" filter.
func (b searchBody) params() query.Params {
	p := query.NewParams(b.IndexPattern, b.QueryString)
	if b.Filter != "" {
		p = p.WithFilter(query.Filter(b.Filter))
	}
	if b.Sort != "" {
		p = p.WithSort(query.Sort(b.Sort))
	}
	return p
}

type hitResponse struct {
	ID         string          `json:"_id"`
	Index      string          `json:"_index"`
	Source     map[string]any  `json:"_source"`
	Rating     rating.Value    `json:"rating"`
	Author     string          `json:"@author,omitempty"`
	Timestamp  *time.Time      `json:"@timestamp,omitempty"`
	Rendered   string          `json:"rendered"`
	HasDisplay bool            `json:"has_display"`
	State      rating.Snapshot `json:"state"`
}

type searchResponse struct {
	Hits       []hitResponse `json:"hits"`
	Total      int           `json:"total"`
	TotalLabel string        `json:"total_label"`
	Filter     query.Filter  `json:"filter"`
	Sort       query.Sort    `json:"sort"`
}

type ratingBody struct {
	Rating *int `json:"rating"`
}

type ratingResponse struct {
	Outcome rating.Outcome  `json:"outcome,omitempty"`
	State   rating.Snapshot `json:"state"`
}

type judgeBody struct {
	searchBody
	Overwrite bool `json:"overwrite"`
}

// SearchJudgements handles POST .../scenarios/{scenario}/judgements/_search.
func (s *Server) SearchJudgements(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if !s.decodeOptional(w, r, &body) {
		return
	}
	res, err := s.judgements.Search(r.Context(), judgementuc.SearchRequest{
		ProjectID:  param(r, "project"),
		ScenarioID: param(r, "scenario"),
		Params:     body.params(),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	hits := make([]hitResponse, 0, len(res.Hits))
	for i := range res.Hits {
		v := &res.Hits[i]
		hits = append(hits, hitResponse{
			ID:         v.Hit.Doc.ID(),
			Index:      v.Hit.Doc.Index(),
			Source:     v.Hit.Doc.Source(),
			Rating:     v.Hit.Rating,
			Author:     v.Hit.Author,
			Timestamp:  v.Hit.Timestamp,
			Rendered:   v.Rendered,
			HasDisplay: v.HasDisplay,
			State:      v.Rating,
		})
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Hits:       hits,
		Total:      res.Total,
		TotalLabel: res.TotalLabel,
		Filter:     res.Filter,
		Sort:       res.Sort,
	})
}

// ChangeRating handles PATCH .../judgements/{index}/{doc}.
func (s *Server) ChangeRating(w http.ResponseWriter, r *http.Request) {
	var body ratingBody
	if !s.decode(w, r, &body) {
		return
	}
	if body.Rating == nil {
		s.handleDomainError(w, domain.Validationf("rating is required"))
		return
	}
	snap, err := s.judgements.Change(r.Context(), ratingKey(r), *body.Rating)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ratingResponse{State: snap})
}

// CommitRating handles POST .../judgements/{index}/{doc}. An empty body
// commits the value set by earlier changes.
func (s *Server) CommitRating(w http.ResponseWriter, r *http.Request) {
	var body ratingBody
	if !s.decodeOptional(w, r, &body) {
		return
	}
	outcome, snap, err := s.judgements.Commit(r.Context(), ratingKey(r), body.Rating)
	s.writeRatingResult(w, outcome, snap, err)
}

// ClearRating handles DELETE .../judgements/{index}/{doc}.
func (s *Server) ClearRating(w http.ResponseWriter, r *http.Request) {
	outcome, snap, err := s.judgements.Clear(r.Context(), ratingKey(r))
	s.writeRatingResult(w, outcome, snap, err)
}

// RunJudge handles POST .../scenarios/{scenario}/judgements/_ai.
func (s *Server) RunJudge(w http.ResponseWriter, r *http.Request) {
	if s.judge == nil || !s.judge.Enabled() {
		s.handleDomainError(w, domain.ErrJudgeDisabled)
		return
	}
	var body judgeBody
	if !s.decodeOptional(w, r, &body) {
		return
	}
	report, err := s.judge.Run(r.Context(), aijudgeuc.Request{
		ProjectID:  param(r, "project"),
		ScenarioID: param(r, "scenario"),
		Params:     body.params(),
		Overwrite:  body.Overwrite,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeRatingResult(w http.ResponseWriter, outcome rating.Outcome, snap rating.Snapshot, err error) {
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	status := http.StatusOK
	if outcome == rating.OutcomeQueued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, ratingResponse{Outcome: outcome, State: snap})
}

func ratingKey(r *http.Request) rating.Key {
	return rating.Key{
		Project:  param(r, "project"),
		Scenario: param(r, "scenario"),
		Index:    param(r, "index"),
		DocID:    param(r, "doc"),
	}
}

// JudgeUsage handles GET /api/judge/usage?period=day|month.
func (s *Server) JudgeUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if s.usage == nil {
		s.handleDomainError(w, domain.ErrJudgeDisabled)
		return
	}
	writeJSON(w, http.StatusOK, s.usage.GetReport(r.Context(), period))
}
