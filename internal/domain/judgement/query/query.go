// Package query holds the judgement search filter and sort contract.
package query

import (
	"strconv"

	"github.com/kailas-cloud/esre-console/internal/domain"
)

// Filter restricts judgement search hits by rating provenance.
type Filter string

// Filter values.
const (
	FilterAll        Filter = "all"
	FilterRated      Filter = "rated"
	FilterRatedHuman Filter = "rated-human"
	FilterRatedAI    Filter = "rated-ai"
	FilterUnrated    Filter = "unrated"
)

// IsValid checks if the filter is one of the supported values.
func (f Filter) IsValid() bool {
	switch f {
	case FilterAll, FilterRated, FilterRatedHuman, FilterRatedAI, FilterUnrated:
		return true
	}
	return false
}

// Rated reports whether the filter only admits rated documents.
func (f Filter) Rated() bool {
	return f == FilterRated || f == FilterRatedHuman || f == FilterRatedAI
}

// Sort orders judgement search hits.
type Sort string

// Sort values.
const (
	SortMatch        Sort = "match"
	SortRatingNewest Sort = "rating-newest"
	SortRatingOldest Sort = "rating-oldest"
)

// IsValid checks if the sort is one of the supported values.
func (s Sort) IsValid() bool {
	return s == SortMatch || s == SortRatingNewest || s == SortRatingOldest
}

// ByRating reports whether the sort needs a rating timestamp.
func (s Sort) ByRating() bool {
	return s == SortRatingNewest || s == SortRatingOldest
}

// Params is the user-facing search state. Filter and Sort are kept
// mutually consistent by WithFilter and WithSort.
type Params struct {
	IndexPattern string
	QueryString  string
	filter       Filter
	sort         Sort
}

// NewParams returns params with filter "all" and sort "match".
func NewParams(indexPattern, queryString string) Params {
	return Params{
		IndexPattern: indexPattern,
		QueryString:  queryString,
		filter:       FilterAll,
		sort:         SortMatch,
	}
}

// Filter returns the current filter.
func (p Params) Filter() Filter { return p.filter }

// Sort returns the current sort.
func (p Params) Sort() Sort { return p.sort }

// WithFilter selects f. Selecting "unrated" resets a rating sort to "match".
func (p Params) WithFilter(f Filter) Params {
	p.filter = f
	if f == FilterUnrated {
		p.sort = SortMatch
	}
	return p
}

// WithSort selects s. A rating sort forces the filter "all" or "unrated"
// to "rated". The filters "rated-human" and "rated-ai" are kept as they
// are: both are narrower "rated" filters, so the author choice survives.
func (p Params) WithSort(s Sort) Params {
	p.sort = s
	if s.ByRating() && !p.filter.Rated() {
		p.filter = FilterRated
	}
	return p
}

// Validate checks the params before a search request is built.
func (p Params) Validate() error {
	if p.IndexPattern == "" {
		return domain.Validationf("index_pattern is required")
	}
	if !p.filter.IsValid() {
		return domain.Validationf("unknown filter %q", p.filter)
	}
	if !p.sort.IsValid() {
		return domain.Validationf("unknown sort %q", p.sort)
	}
	return nil
}

// Request is the backend judgement search body.
type Request struct {
	IndexPattern string  `json:"index_pattern"`
	QueryString  string  `json:"query_string"`
	Filter       Filter  `json:"filter,omitempty"`
	Sort         Sort    `json:"sort,omitempty"`
	Source       *Source `json:"_source,omitempty"`
}

// Source limits returned document fields.
type Source struct {
	Includes []string `json:"includes"`
}

// Request builds the backend body. Default filter and sort are omitted;
// includes restricts _source when non-empty.
func (p Params) Request(includes []string) Request {
	r := Request{IndexPattern: p.IndexPattern, QueryString: p.QueryString}
	if p.filter != FilterAll {
		r.Filter = p.filter
	}
	if p.sort != SortMatch {
		r.Sort = p.sort
	}
	if len(includes) > 0 {
		r.Source = &Source{Includes: includes}
	}
	return r
}

// TotalCap is the count at which totals become lower-bound estimates.
const TotalCap = 10000

// FormatTotal renders a hit count; counts at or above TotalCap get a "+".
func FormatTotal(n int) string {
	s := strconv.Itoa(n)
	if n >= TotalCap {
		return s + "+"
	}
	return s
}
