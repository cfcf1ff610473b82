package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/esre-console/internal/domain/judgement/query"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRender_Hit(t *testing.T) {
	doc := `{"_id":"42","_index":"books-2024","_source":{"title":"Dune","authors":[{"name":"Herbert"}]}}`
	out, err := run(t, doc, "render", "-t", "{{ title }} by {{ authors.0.name }} [{{ _index }}/{{_id}}] {{ missing }}")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "Dune by Herbert [books-2024/42] {{ missing }}\n"
	if out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestRender_BareSource(t *testing.T) {
	out, err := run(t, `{"year":1965,"available":true}`, "render", "-t", "{{year}} {{available}}")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "1965 true\n" {
		t.Errorf("out = %q", out)
	}
}

func TestRender_RequiresTemplate(t *testing.T) {
	if _, err := run(t, "{}", "render"); err == nil {
		t.Error("expected error without --template")
	}
}

func TestResolve_Patterns(t *testing.T) {
	out, err := run(t, "", "resolve", "--json",
		"-p", "books-*", "-p", "books-2024*", "-p", "movies",
		"books-2024-01", "books-old", "music")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := map[string]string{
		"books-2024-01": "books-2024*",
		"books-old":     "books-*",
		"music":         "-",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s -> %q, want %q", k, got[k], v)
		}
	}
}

func TestResolve_NoPatterns(t *testing.T) {
	if _, err := run(t, "", "resolve", "books"); err == nil {
		t.Error("expected error without patterns")
	}
}

func TestSearchParams(t *testing.T) {
	cmd := &cobra.Command{}
	addSearchFlags(cmd)
	if err := cmd.Flags().Parse([]string{"--sort", "rating-oldest", "-q", "dune"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	p, err := searchParams(cmd)
	if err != nil {
		t.Fatalf("searchParams: %v", err)
	}
	if p.Filter() != query.FilterRated || p.Sort() != query.SortRatingOldest || p.QueryString != "dune" {
		t.Errorf("params = %s/%s/%q", p.Filter(), p.Sort(), p.QueryString)
	}

	bad := &cobra.Command{}
	addSearchFlags(bad)
	_ = bad.Flags().Parse([]string{"--filter", "starred"})
	if _, err := searchParams(bad); err == nil {
		t.Error("expected error for unknown filter")
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "esrectl ") {
		t.Errorf("out = %q", out)
	}
}
