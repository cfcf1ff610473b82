package esre

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/esre-console/internal/domain"
	"github.com/kailas-cloud/esre-console/internal/domain/display"
	"github.com/kailas-cloud/esre-console/internal/domain/judgement"
	"github.com/kailas-cloud/esre-console/internal/domain/judgement/query"
	"github.com/kailas-cloud/esre-console/internal/domain/project"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
	"github.com/kailas-cloud/esre-console/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterConsoleMetrics()
	os.Exit(m.Run())
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", APIKey: "secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "/relative", "::bad"} {
		if _, err := New(Config{BaseURL: u}); err == nil {
			t.Errorf("New(%q): expected error", u)
		}
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:9200"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.http.Timeout != DefaultTimeout {
		t.Errorf("timeout = %s, want %s", c.http.Timeout, DefaultTimeout)
	}
}

func TestProjects_List(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/projects" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "ApiKey secret" {
			t.Errorf("unexpected auth header: %q", r.Header.Get("Authorization"))
		}
		writeJSON(w, http.StatusOK, `{"hits":{"total":{"value":2},"hits":[
			{"_id":"p1","_source":{"name":"Books","index_pattern":"books-*"}},
			{"_id":"p2","_source":{"name":"Logs","index_pattern":"logs-*","rating_scale":{"min":1,"max":5}}}
		]}}`)
	})

	list, err := c.Projects().List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Total != 2 || len(list.Items) != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list.Items[0].ID != "p1" || list.Items[0].Name != "Books" {
		t.Errorf("item 0 = %+v", list.Items[0])
	}
	if got := list.Items[1].Scale(); got != (rating.Scale{Min: 1, Max: 5}) {
		t.Errorf("item 1 scale = %+v", got)
	}
}

func TestDisplays_GetSetsIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/api/projects/p%201/displays/d1" {
			t.Errorf("unexpected path %q", got)
		}
		writeJSON(w, http.StatusOK, `{"_id":"d1","_source":{"index_pattern":"logs-*","template":{"body":"{{ title }}"}}}`)
	})

	d, err := c.Displays("p 1").Get(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := display.Display{
		ID: "d1", ProjectID: "p 1", IndexPattern: "logs-*",
		Template: display.Template{Body: "{{ title }}"},
	}
	if d.ID != want.ID || d.ProjectID != want.ProjectID || d.IndexPattern != want.IndexPattern || d.Template != want.Template {
		t.Errorf("Get() = %+v, want %+v", d, want)
	}
}

func TestScenarios_CreateUpdateDelete(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			var s project.Scenario
			if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
				t.Errorf("decode body: %v", err)
			}
			if s.Name != "cheap flights" {
				t.Errorf("unexpected body: %+v", s)
			}
			writeJSON(w, http.StatusCreated, `{"_id":"s1","result":"created"}`)
		default:
			writeJSON(w, http.StatusOK, `{"result":"ok"}`)
		}
	})

	col := c.Scenarios("p1")
	id, err := col.Create(context.Background(), project.Scenario{Name: "cheap flights"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "s1" {
		t.Errorf("id = %q, want s1", id)
	}
	if err := col.Update(context.Background(), "s1", project.Scenario{Name: "x"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := col.Delete(context.Background(), "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []string{
		"POST /api/projects/p1/scenarios",
		"PUT /api/projects/p1/scenarios/s1",
		"DELETE /api/projects/p1/scenarios/s1",
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestValidation_NoIO(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	ctx := context.Background()

	checks := map[string]error{
		"empty project scope": func() error { _, err := c.Scenarios("").List(ctx); return err }(),
		"empty record id":     func() error { _, err := c.Projects().Get(ctx, ""); return err }(),
		"empty delete id":     c.Strategies("p1").Delete(ctx, ""),
		"search without scenario": func() error {
			_, err := c.SearchJudgements(ctx, "p1", "", query.Request{IndexPattern: "x"})
			return err
		}(),
		"search without pattern": func() error {
			_, err := c.SearchJudgements(ctx, "p1", "s1", query.Request{})
			return err
		}(),
		"rating without doc":  c.UpsertRating(ctx, rating.Key{Project: "p", Scenario: "s", Index: "i"}, 1),
		"clear without index": c.DeleteRating(ctx, rating.Key{Project: "p", Scenario: "s", DocID: "d"}),
		"run without project": func() error { _, err := c.RunEvaluation(ctx, "", project.RunRequest{}); return err }(),
	}
	for name, err := range checks {
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"error":"version conflict"}`)
	})

	_, err := c.Projects().Get(context.Background(), "p1")
	if !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Error("409 must not match ErrNotFound")
	}
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Body != `{"error":"version conflict"}` {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestBackendError_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"found":false}`)
	})

	_, err := c.Evaluations("p1").Get(context.Background(), "e1")
	if !errors.Is(err, domain.ErrNotFound) || !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("expected ErrNotFound and ErrBackend, got %v", err)
	}
}

func TestTransportError_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	before := testutil.ToFloat64(metrics.BackendRequestsTotal.WithLabelValues("ping", "transport_error"))
	err = c.Ping(context.Background())
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if errors.Is(err, domain.ErrBackend) {
		t.Error("transport error must not match ErrBackend")
	}
	after := testutil.ToFloat64(metrics.BackendRequestsTotal.WithLabelValues("ping", "transport_error"))
	if after != before+1 {
		t.Errorf("transport_error counter = %v, want %v", after, before+1)
	}
}

func TestTransportError_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = c.Ping(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !te.Timeout() {
		t.Errorf("expected timeout, got %v", te.Err)
	}
}

func TestSearchJudgements(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/projects/p1/scenarios/s1/judgements/_search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["filter"] != "rated" || body["sort"] != "rating-newest" {
			t.Errorf("unexpected body: %v", body)
		}
		writeJSON(w, http.StatusOK, `{"hits":{"total":{"value":10000},"hits":[
			{"doc":{"_id":"d1","_index":"logs-1","_source":{"title":"a"}},"rating":3,"@author":"ai:m","@timestamp":"2026-01-02T03:04:05Z"},
			{"doc":{"_id":"d2","_index":"logs-1","_source":{"title":"b"}},"rating":null}
		]}}`)
	})

	params := query.NewParams("logs-*", "*").WithSort(query.SortRatingNewest)
	res, err := c.SearchJudgements(context.Background(), "p1", "s1", params.Request(nil))
	if err != nil {
		t.Fatalf("SearchJudgements: %v", err)
	}
	if res.Total != 10000 || len(res.Hits) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	h := res.Hits[0]
	if h.Doc.ID() != "d1" || h.Doc.Index() != "logs-1" {
		t.Errorf("hit 0 doc = %s/%s", h.Doc.Index(), h.Doc.ID())
	}
	if n, ok := h.Rating.Int(); !ok || n != 3 {
		t.Errorf("hit 0 rating = %v", h.Rating)
	}
	if !h.ByAI() || h.Timestamp == nil {
		t.Errorf("hit 0 author/timestamp = %q/%v", h.Author, h.Timestamp)
	}
	if res.Hits[1].Rating.IsSet() {
		t.Errorf("hit 1 rating should be unset, got %v", res.Hits[1].Rating)
	}
}

func TestUpsertRating(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/projects/p1/judgements" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var j judgement.Judgement
		if err := json.NewDecoder(r.Body).Decode(&j); err != nil {
			t.Errorf("decode: %v", err)
		}
		want := judgement.Judgement{ScenarioID: "s1", Index: "logs-1", DocID: "d1", Rating: 4}
		if j != want {
			t.Errorf("body = %+v, want %+v", j, want)
		}
		writeJSON(w, http.StatusOK, `{"result":"updated"}`)
	})

	key := rating.Key{Project: "p1", Scenario: "s1", Index: "logs-1", DocID: "d1"}
	if err := c.UpsertRating(context.Background(), key, 4); err != nil {
		t.Fatalf("UpsertRating: %v", err)
	}
}

func TestDeleteRating(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/projects/p1/judgements" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("scenario_id") != "s1" || q.Get("index") != "logs-1" || q.Get("doc_id") != "d/1" {
			t.Errorf("unexpected query: %v", q)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	key := rating.Key{Project: "p1", Scenario: "s1", Index: "logs-1", DocID: "d/1"}
	if err := c.DeleteRating(context.Background(), key); err != nil {
		t.Fatalf("DeleteRating: %v", err)
	}
}

func TestRunEvaluation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects/p1/evaluations/_run" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusAccepted, `{"_id":"e42"}`)
	})

	req := project.RunRequest{Strategies: []string{"st"}, Scenarios: []string{"sc"}}
	id, err := c.RunEvaluation(context.Background(), "p1", req)
	if err != nil {
		t.Fatalf("RunEvaluation: %v", err)
	}
	if id != "e42" {
		t.Errorf("id = %q, want e42", id)
	}
}
