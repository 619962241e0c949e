package parser

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
)

var testLimits = Limits{DefaultLimit: 50, MaxResults: 500}

func TestParseURL(t *testing.T) {
	values := url.Values{
		"q":      {"  payment   API "},
		"filter": {"team:equals:core", "criticality:range:4..5", "docType:in:Runbook,API", "owner:exists:false"},
		"sort":   {"overallScore"},
		"order":  {"ASC"},
		"offset": {"10"},
		"limit":  {"20"},
	}
	q, err := ParseURL(values, testLimits)
	require.NoError(t, err)

	assert.Equal(t, "payment API", q.Text)
	assert.Equal(t, []string{"payment", "api"}, q.Terms())
	assert.Equal(t, SortOverallScore, q.SortBy)
	assert.Equal(t, OrderAsc, q.Order())
	assert.Equal(t, 10, q.Offset)
	assert.Equal(t, 20, q.Limit)

	require.Len(t, q.Filters, 4)
	assert.Equal(t, Filter{Field: "team", Operator: OpEquals, Value: "core"}, q.Filters[0])
	assert.Equal(t, map[string]any{"min": 4.0, "max": 5.0}, q.Filters[1].Value)
	assert.Equal(t, []any{"Runbook", "API"}, q.Filters[2].Value)
	assert.Equal(t, false, q.Filters[3].Value)
}

func TestParseURLDefaultsAndClamp(t *testing.T) {
	q, err := ParseURL(url.Values{}, testLimits)
	require.NoError(t, err)
	assert.Equal(t, 50, q.Limit)
	assert.Equal(t, OrderDesc, q.Order())

	q, err = ParseURL(url.Values{"limit": {"9000"}}, testLimits)
	require.NoError(t, err)
	assert.Equal(t, 500, q.Limit)
}

func TestParseURLRangeMissingBound(t *testing.T) {
	q, err := ParseURL(url.Values{"filter": {"criticality:range:..5"}}, testLimits)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"max": 5.0}, q.Filters[0].Value)
}

func TestParseURLRejects(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
	}{
		{"bad operator", url.Values{"filter": {"team:like:core"}}},
		{"bad filter shape", url.Values{"filter": {"team"}}},
		{"bad exists value", url.Values{"filter": {"owner:exists:maybe"}}},
		{"bad sort", url.Values{"sort": {"views"}}},
		{"bad order", url.Values{"order": {"sideways"}}},
		{"negative offset", url.Values{"offset": {"-1"}}},
		{"non-numeric limit", url.Values{"limit": {"ten"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.values, testLimits)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
		})
	}
}

func TestDecode(t *testing.T) {
	body := `{"text":"runbook","filters":[{"field":"criticality","operator":"range","value":{"min":4,"max":5}}],"sortBy":"title","limit":5}`
	q, err := Decode(strings.NewReader(body), testLimits)
	require.NoError(t, err)
	assert.Equal(t, "runbook", q.Text)
	assert.Equal(t, map[string]any{"min": 4.0, "max": 5.0}, q.Filters[0].Value)
	assert.Equal(t, SortTitle, q.SortBy)
	assert.Equal(t, 5, q.Limit)

	q, err = Decode(strings.NewReader(""), testLimits)
	require.NoError(t, err)
	assert.Equal(t, 50, q.Limit)

	_, err = Decode(strings.NewReader("{"), testLimits)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "All documents", Describe(&Query{}))
	assert.Equal(t, `Search: "x"`, Describe(&Query{Text: "x"}))
	assert.Equal(t, `Search: "x" | Filters: team = core, criticality range 4..5`, Describe(&Query{
		Text: "x",
		Filters: []Filter{
			{Field: "team", Operator: OpEquals, Value: "core"},
			{Field: "criticality", Operator: OpRange, Value: map[string]any{"min": 4.0, "max": 5.0}},
		},
	}))
}

func TestCanonicalFillsDefaultsAndKeepsText(t *testing.T) {
	a := &Query{Text: "payment api"}
	b := &Query{Text: "payment   api", SortBy: SortRelevance, SortOrder: OrderDesc, Limit: 50}
	assert.Equal(t, Canonical(a), Canonical(b))

	assert.NotEqual(t, Canonical(a), Canonical(&Query{Text: "payment api", Offset: 50}))
	assert.NotEqual(t, Canonical(a), Canonical(&Query{Text: "api payment"}))
	assert.NotEqual(t, Canonical(a), Canonical(&Query{Text: "Payment API"}))
}

func TestCanonicalKeepsValueTypes(t *testing.T) {
	key := func(op Operator, v any) string {
		return Canonical(&Query{Filters: []Filter{{Field: "owner", Operator: op, Value: v}}})
	}
	assert.NotEqual(t, key(OpExists, "true"), key(OpExists, true))
	assert.NotEqual(t, key(OpIn, []any{"core,platform"}), key(OpIn, []any{"core", "platform"}))
	assert.NotEqual(t, key(OpEquals, "3"), key(OpEquals, 3.0))
	assert.Equal(t,
		key(OpRange, map[string]any{"min": 1.0, "max": 2.0}),
		key(OpRange, map[string]any{"max": 2.0, "min": 1.0}),
	)
}
