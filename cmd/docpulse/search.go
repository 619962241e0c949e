package main

import (
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adrian-1-cardona/DocPulse/internal/reporting"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/executor"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/parser"
)

var (
	searchFilters []string
	searchSort    string
	searchOrder   string
	searchOffset  int
	searchLimit   int
	searchJSON    bool
	searchFacets  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [text...]",
	Short: "Search the scored workspace",
	Long: `Search titles, owners, teams, systems and paths. Every word must match.
Filters take the form field:operator:value, for example:

  docpulse search payment --filter team:equals:core --filter criticality:range:4..5
  docpulse search --filter status:in:high_risk,medium_risk --sort overallScore`,
	RunE: func(cmd *cobra.Command, args []string) error {
		values := url.Values{}
		if len(args) > 0 {
			values.Set("q", strings.Join(args, " "))
		}
		values["filter"] = searchFilters
		if searchSort != "" {
			values.Set("sort", searchSort)
		}
		if searchOrder != "" {
			values.Set("order", searchOrder)
		}
		if searchOffset > 0 {
			values.Set("offset", strconv.Itoa(searchOffset))
		}
		if searchLimit > 0 {
			values.Set("limit", strconv.Itoa(searchLimit))
		}
		q, err := parser.ParseURL(values, parser.Limits{
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxResults:   cfg.Search.MaxResults,
		})
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		docs, err := st.List(cmd.Context())
		if err != nil {
			return err
		}

		res := executor.Search(docs, q)
		out := cmd.OutOrStdout()
		if searchJSON {
			return reporting.WriteJSON(out, res)
		}
		printResult(out, res, searchFacets)
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringArrayVarP(&searchFilters, "filter", "f", nil, "field:operator:value filter (repeatable)")
	f.StringVar(&searchSort, "sort", "", "relevance | overallScore | lastUpdated | title")
	f.StringVar(&searchOrder, "order", "", "asc | desc (default desc)")
	f.IntVar(&searchOffset, "offset", 0, "results to skip")
	f.IntVar(&searchLimit, "limit", 0, "page size")
	f.BoolVar(&searchJSON, "json", false, "print the full result as JSON")
	f.BoolVar(&searchFacets, "facets", false, "print facet counts")
}

func printResult(w io.Writer, res *executor.SearchResult, facets bool) {
	fmt.Fprintln(w, res.Description)
	fmt.Fprintf(w, "%d matching, showing %d (%.1fms)\n\n", res.TotalCount, len(res.Documents), res.ExecutionTimeMs)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tSTATUS\tTEAM\tOWNER\tTITLE\tID")
	for _, d := range res.Documents {
		fmt.Fprintf(tw, "%.0f\t%s\t%s\t%s\t%s\t%s\n",
			d.OverallScore, d.Risk().Status(), reporting.TeamOf(d), d.Owner, d.Title, d.ID)
	}
	tw.Flush()

	if !facets {
		return
	}
	for _, name := range executor.FacetFields {
		counts := res.Facets[name]
		parts := make([]string, 0, len(counts))
		for _, k := range slices.Sorted(maps.Keys(counts)) {
			parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
		}
		fmt.Fprintf(w, "\n%s: %s", name, strings.Join(parts, " "))
	}
	fmt.Fprintln(w)
}
