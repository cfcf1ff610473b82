package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/esre-console/internal/domain/display/pattern"
	"github.com/kailas-cloud/esre-console/internal/domain/display/template"
	domdoc "github.com/kailas-cloud/esre-console/internal/domain/document"
	"github.com/kailas-cloud/esre-console/internal/domain/judgement/query"
	"github.com/kailas-cloud/esre-console/internal/domain/rating"
	aijudgeuc "github.com/kailas-cloud/esre-console/internal/usecase/aijudge"
	judgementuc "github.com/kailas-cloud/esre-console/internal/usecase/judgement"
	"github.com/kailas-cloud/esre-console/internal/version"
)

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a display template against a document",
		Long: `Render reads a document from --file (or stdin) and prints the template
with every {{ path }} placeholder substituted. The document may be a bare
_source object or a hit with _id, _index and _source.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tmpl, _ := cmd.Flags().GetString("template")
			file, _ := cmd.Flags().GetString("file")

			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			doc, err := readDocument(in)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), template.Render(tmpl, doc.Values()))
			return err
		},
	}
	cmd.Flags().StringP("template", "t", "", "template body, e.g. \"{{ title }} ({{ year }})\"")
	cmd.Flags().StringP("file", "f", "", "document JSON file (default stdin)")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve INDEX...",
		Short: "Resolve concrete index names to display patterns",
		Long: `Resolve prints the display pattern that wins for each index name.
Patterns come from --pattern flags, or from a project's displays when
--project is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns, _ := cmd.Flags().GetStringSlice("pattern")
			projectID, _ := cmd.Flags().GetString("project")

			if projectID != "" {
				a, err := newApp()
				if err != nil {
					return err
				}
				set, err := a.displays.Get(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				patterns = patterns[:0]
				for p := range set.Map() {
					patterns = append(patterns, p)
				}
				sort.Strings(patterns)
			}
			if len(patterns) == 0 {
				return errors.New("no patterns: use --pattern or --project")
			}

			idx := pattern.Build(patterns)
			results := make(map[string]string, len(args))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range args {
				p, ok := idx.Resolve(name)
				if !ok {
					p = "-"
				}
				results[name] = p
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, p, strings.Join(idx.Matches(name), ","))
			}
			if asJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), results)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringSliceP("pattern", "p", nil, "index pattern (repeatable)")
	cmd.Flags().String("project", "", "load patterns from this project's displays")
	return cmd
}

func judgementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "judgements PROJECT SCENARIO",
		Short: "Search judgement candidates of a scenario",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			params, err := searchParams(cmd)
			if err != nil {
				return err
			}
			res, err := a.judgements.Search(cmd.Context(), judgementuc.SearchRequest{
				ProjectID:  args[0],
				ScenarioID: args[1],
				Params:     params,
			})
			if err != nil {
				return err
			}
			if asJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), searchJSON(res))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s documents (filter %s, sort %s)\n", res.TotalLabel, res.Filter, res.Sort)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for i := range res.Hits {
				h := &res.Hits[i]
				text := h.Rendered
				if !h.HasDisplay {
					text = "(no display)"
				}
				fmt.Fprintf(w, "%s\t%s/%s\t%s\t%s\n",
					h.Hit.Rating, h.Hit.Doc.Index(), h.Hit.Doc.ID(), h.Hit.Author, oneLine(text))
			}
			return w.Flush()
		},
	}
	addSearchFlags(cmd)
	return cmd
}

func rateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate PROJECT SCENARIO INDEX DOC RATING",
		Short: "Write a rating for one document",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[4])
			if err != nil {
				return fmt.Errorf("rating must be an integer: %w", err)
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			outcome, snap, err := a.judgements.Commit(cmd.Context(), keyFromArgs(args), &n)
			if err != nil {
				return err
			}
			return printOutcome(cmd, outcome, snap)
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear PROJECT SCENARIO INDEX DOC",
		Short: "Remove the rating of one document",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			outcome, snap, err := a.judgements.Clear(cmd.Context(), keyFromArgs(args))
			if err != nil {
				return err
			}
			return printOutcome(cmd, outcome, snap)
		},
	}
}

func judgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "judge PROJECT SCENARIO",
		Short: "Rate one page of judgement candidates with the AI judge",
		Long: `Judge sends every candidate of one judgement search page to an
OpenAI-compatible model (ESRE_JUDGE_API_KEY, ESRE_JUDGE_MODEL) and stores
its ratings. Human ratings are never overwritten.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			params, err := searchParams(cmd)
			if err != nil {
				return err
			}
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			report, err := a.judge().Run(cmd.Context(), aijudgeuc.Request{
				ProjectID:  args[0],
				ScenarioID: args[1],
				Params:     params,
				Overwrite:  overwrite,
			})
			if err != nil {
				return err
			}
			if asJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), report)
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, r := range report.Results {
				got := "-"
				if r.Rating != nil {
					got = strconv.Itoa(*r.Rating)
				}
				fmt.Fprintf(w, "%s\t%s/%s\t%s\t%s\n", r.Status, r.Index, r.DocID, got, oneLine(r.Reason+r.Error))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "model %s: %d rated, %d skipped, %d no display, %d failed\n", report.Model,
				report.Counts[aijudgeuc.StatusRated], report.Counts[aijudgeuc.StatusSkipped],
				report.Counts[aijudgeuc.StatusNoDisplay], report.Counts[aijudgeuc.StatusFailed])
			return nil
		},
	}
	addSearchFlags(cmd)
	cmd.Flags().Bool("overwrite", false, "re-rate documents already rated by the AI judge")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "esrectl %s\n", version.Version)
			fmt.Fprintf(out, "  commit: %s\n", version.Commit)
			fmt.Fprintf(out, "  built:  %s\n", version.Date)
		},
	}
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().String("index", "", "index pattern (default: the project's)")
	cmd.Flags().StringP("query", "q", "", "query string")
	cmd.Flags().String("filter", string(query.FilterAll), "all, rated, rated-human, rated-ai or unrated")
	cmd.Flags().String("sort", string(query.SortMatch), "match, rating-newest or rating-oldest")
}

// searchParams applies --filter before --sort so a rating sort can narrow the filter.
func searchParams(cmd *cobra.Command) (query.Params, error) {
	index, _ := cmd.Flags().GetString("index")
	q, _ := cmd.Flags().GetString("query")
	filter, _ := cmd.Flags().GetString("filter")
	order, _ := cmd.Flags().GetString("sort")

	p := query.NewParams(index, q).WithFilter(query.Filter(filter))
	if cmd.Flags().Changed("sort") {
		p = p.WithSort(query.Sort(order))
	}
	if !p.Filter().IsValid() {
		return query.Params{}, fmt.Errorf("unknown filter %q", filter)
	}
	if !p.Sort().IsValid() {
		return query.Params{}, fmt.Errorf("unknown sort %q", order)
	}
	return p, nil
}

func searchJSON(res judgementuc.SearchResult) map[string]any {
	hits := make([]map[string]any, 0, len(res.Hits))
	for i := range res.Hits {
		h := &res.Hits[i]
		hits = append(hits, map[string]any{
			"_id":         h.Hit.Doc.ID(),
			"_index":      h.Hit.Doc.Index(),
			"_source":     h.Hit.Doc.Source(),
			"rating":      h.Hit.Rating,
			"@author":     h.Hit.Author,
			"rendered":    h.Rendered,
			"has_display": h.HasDisplay,
		})
	}
	return map[string]any{
		"total":       res.Total,
		"total_label": res.TotalLabel,
		"filter":      res.Filter,
		"sort":        res.Sort,
		"hits":        hits,
	}
}

func keyFromArgs(args []string) rating.Key {
	return rating.Key{Project: args[0], Scenario: args[1], Index: args[2], DocID: args[3]}
}

func printOutcome(cmd *cobra.Command, outcome rating.Outcome, snap rating.Snapshot) error {
	if asJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), map[string]any{"outcome": outcome, "state": snap})
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (rating %s)\n", outcome, snap.Committed)
	return err
}

// readDocument accepts a hit envelope or a bare source object.
func readDocument(r io.Reader) (domdoc.Document, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return domdoc.Document{}, fmt.Errorf("decode document: %w", err)
	}
	src, ok := raw["_source"].(map[string]any)
	if !ok {
		return domdoc.Reconstruct("", "", raw), nil
	}
	id, _ := raw["_id"].(string)
	index, _ := raw["_index"].(string)
	return domdoc.Reconstruct(id, index, src), nil
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
