// Package parser turns search requests into a Query: free text, ANDed
// structured filters, a sort key and a page window. Queries arrive either as
// URL parameters (GET) or as a JSON body (POST).
package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
)

type Operator string

const (
	OpEquals     Operator = "equals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpIn         Operator = "in"
	OpRange      Operator = "range"
	OpExists     Operator = "exists"
)

var operators = []Operator{OpEquals, OpContains, OpStartsWith, OpIn, OpRange, OpExists}

type SortKey string

const (
	SortRelevance    SortKey = "relevance"
	SortOverallScore SortKey = "overallScore"
	SortLastUpdated  SortKey = "lastUpdated"
	SortTitle        SortKey = "title"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// DefaultLimit is the page size used when a query does not set one.
const DefaultLimit = 50

// Filter is one structured condition. Value holds a string, number or bool
// for scalar operators, a list for "in", and {"min","max"} for "range".
type Filter struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Query is a parsed search request.
type Query struct {
	Text      string    `json:"text,omitempty"`
	Filters   []Filter  `json:"filters,omitempty"`
	SortBy    SortKey   `json:"sortBy,omitempty"`
	SortOrder SortOrder `json:"sortOrder,omitempty"`
	Offset    int       `json:"offset,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// Terms splits the text on whitespace and lower-cases every token.
func (q *Query) Terms() []string {
	return strings.Fields(strings.ToLower(q.Text))
}

// Order returns the sort direction, descending unless asc was asked for.
func (q *Query) Order() SortOrder {
	if q.SortOrder == OrderAsc {
		return OrderAsc
	}
	return OrderDesc
}

// PageLimit returns the effective page size.
func (q *Query) PageLimit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Limits bound the page window accepted from clients.
type Limits struct {
	DefaultLimit int
	MaxResults   int
}

// ParseURL reads a query from URL parameters:
//
//	q=payment api&filter=team:equals:core&filter=criticality:range:4..5&sort=overallScore&order=asc&offset=0&limit=20
//
// Filter values for "in" are comma separated; "range" takes min..max.
func ParseURL(values url.Values, lim Limits) (*Query, error) {
	q := &Query{
		Text:      values.Get("q"),
		SortBy:    SortKey(values.Get("sort")),
		SortOrder: SortOrder(strings.ToLower(values.Get("order"))),
	}
	for _, raw := range values["filter"] {
		f, err := parseFilter(raw)
		if err != nil {
			return nil, err
		}
		q.Filters = append(q.Filters, f)
	}
	var err error
	if q.Offset, err = intParam(values, "offset"); err != nil {
		return nil, err
	}
	if q.Limit, err = intParam(values, "limit"); err != nil {
		return nil, err
	}
	return q, q.normalize(lim)
}

// Decode reads a JSON query body.
func Decode(r io.Reader, lim Limits) (*Query, error) {
	var q Query
	if err := json.NewDecoder(r).Decode(&q); err != nil && err != io.EOF {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid search body: %v", err)
	}
	return &q, q.normalize(lim)
}

func (q *Query) normalize(lim Limits) error {
	q.Text = strings.Join(strings.Fields(q.Text), " ")
	for _, f := range q.Filters {
		if !slices.Contains(operators, f.Operator) {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown filter operator %q", f.Operator)
		}
	}
	switch q.SortBy {
	case "", SortRelevance, SortOverallScore, SortLastUpdated, SortTitle:
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown sort key %q", q.SortBy)
	}
	switch q.SortOrder {
	case "", OrderAsc, OrderDesc:
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "sort order must be asc or desc")
	}
	if q.Offset < 0 {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "offset must not be negative")
	}
	if q.Limit < 0 {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must not be negative")
	}
	if q.Limit == 0 && lim.DefaultLimit > 0 {
		q.Limit = lim.DefaultLimit
	}
	if lim.MaxResults > 0 && q.Limit > lim.MaxResults {
		q.Limit = lim.MaxResults
	}
	return nil
}

func parseFilter(raw string) (Filter, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return Filter{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "filter %q must look like field:operator:value", raw)
	}
	f := Filter{Field: parts[0], Operator: Operator(parts[1])}
	value := ""
	if len(parts) == 3 {
		value = parts[2]
	}
	switch f.Operator {
	case OpIn:
		items := strings.Split(value, ",")
		list := make([]any, 0, len(items))
		for _, it := range items {
			if it = strings.TrimSpace(it); it != "" {
				list = append(list, it)
			}
		}
		f.Value = list
	case OpRange:
		bounds := map[string]any{}
		lo, hi, _ := strings.Cut(value, "..")
		if n, err := strconv.ParseFloat(strings.TrimSpace(lo), 64); err == nil {
			bounds["min"] = n
		}
		if n, err := strconv.ParseFloat(strings.TrimSpace(hi), 64); err == nil {
			bounds["max"] = n
		}
		f.Value = bounds
	case OpExists:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return Filter{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "exists filter on %s needs true or false", f.Field)
		}
		f.Value = b
	default:
		f.Value = value
	}
	return f, nil
}

func intParam(values url.Values, name string) (int, error) {
	s := values.Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%s must be an integer", name)
	}
	return n, nil
}

// Describe renders a query for humans, e.g.
// `Search: "payment api" | Filters: team = core, criticality range 4..5`.
func Describe(q *Query) string {
	var parts []string
	if q.Text != "" {
		parts = append(parts, fmt.Sprintf("Search: %q", q.Text))
	}
	if len(q.Filters) > 0 {
		fs := make([]string, len(q.Filters))
		for i, f := range q.Filters {
			op := string(f.Operator)
			if f.Operator == OpEquals {
				op = "="
			}
			fs[i] = fmt.Sprintf("%s %s %s", f.Field, op, FormatValue(f.Value))
		}
		parts = append(parts, "Filters: "+strings.Join(fs, ", "))
	}
	if len(parts) == 0 {
		return "All documents"
	}
	return strings.Join(parts, " | ")
}

// FormatValue renders a filter value in the same syntax ParseURL accepts.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		items := make([]string, len(t))
		for i, it := range t {
			items[i] = FormatValue(it)
		}
		return strings.Join(items, ",")
	case map[string]any:
		return FormatValue(t["min"]) + ".." + FormatValue(t["max"])
	}
	return fmt.Sprint(v)
}

// Canonical returns a stable string form of q used as a cache key. The text
// is kept as written (whitespace collapsed) because a cached result carries
// its Description. Filter values are JSON encoded so a string "true" and a
// bool true, or one "a,b" item and the list [a b], get different keys.
func Canonical(q *Query) string {
	var b strings.Builder
	b.WriteString("q=" + strconv.Quote(strings.Join(strings.Fields(q.Text), " ")))
	for _, f := range q.Filters {
		value, err := json.Marshal(f.Value)
		if err != nil {
			value = []byte(fmt.Sprintf("%T:%v", f.Value, f.Value))
		}
		fmt.Fprintf(&b, "|f=%q:%q:%s", f.Field, f.Operator, value)
	}
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = SortRelevance
	}
	fmt.Fprintf(&b, "|s=%s:%s|o=%d|l=%d", sortBy, q.Order(), q.Offset, q.PageLimit())
	return b.String()
}
