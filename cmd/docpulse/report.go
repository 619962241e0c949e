package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adrian-1-cardona/DocPulse/internal/reporting"
)

var (
	reportTeam   string
	reportFormat string
	reportType   string
	reportName   string
	reportSave   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise documentation health",
	Long: `Print corpus metrics and recommendations. --format csv renders the
metrics sheet, --format json the full report of the chosen --type
(metrics, compliance or team_health). --save stores the report in the
workspace history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := reporting.ParseType(reportType)
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
		if reportTeam != "" {
			docs = reporting.FilterTeam(docs, reportTeam)
		}

		rep := reporting.NewGenerator().Generate(docs, t, reportName, actor())
		if reportSave {
			if err := reporting.Persist(cmd.Context(), st, rep, len(docs)); err != nil {
				return fmt.Errorf("saving report: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		switch reportFormat {
		case "csv":
			return reporting.WriteCSV(out, rep.Metrics, reportTeam)
		case "json":
			return reporting.WriteJSON(out, rep)
		case "text", "":
			printReport(out, rep)
			return nil
		default:
			return fmt.Errorf("unknown format %q (want text, csv or json)", reportFormat)
		}
	},
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportTeam, "team", "", "limit the report to one team")
	f.StringVar(&reportFormat, "format", "text", "text | csv | json")
	f.StringVar(&reportType, "type", "metrics", "metrics | compliance | team_health")
	f.StringVar(&reportName, "name", "", "report name (default derived from type and date)")
	f.BoolVar(&reportSave, "save", false, "store the report in the workspace history")
}

func printReport(w io.Writer, rep reporting.Report) {
	m := rep.Metrics
	fmt.Fprintln(w, rep.Name)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Documents:            %d\n", m.TotalDocuments)
	fmt.Fprintf(w, "Average staleness:    %d\n", m.AverageStalenessScore)
	fmt.Fprintf(w, "Without owner:        %d\n", m.DocumentsWithoutOwner)
	fmt.Fprintf(w, "Never reviewed:       %d\n", m.DocumentsNeverReviewed)
	d := m.ScoreDistribution
	fmt.Fprintf(w, "Distribution:         critical %d, high %d, medium %d, low %d, excellent %d\n",
		d.Critical, d.High, d.Medium, d.Low, d.Excellent)

	if c := rep.Compliance; c != nil {
		fmt.Fprintf(w, "Owned:                %d%%\n", c.OwnedPercent)
		fmt.Fprintf(w, "Reviewed:             %d%%\n", c.ReviewedPercent)
	}

	if len(m.TotalByTeam) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		if len(rep.TeamHealth) > 0 {
			fmt.Fprintln(tw, "TEAM\tDOCS\tAVG\tHIGH\tMEDIUM\tLOW\tEXCELLENT")
			for _, th := range rep.TeamHealth {
				fmt.Fprintf(tw, "%s\t%d\t%.1f\t%d\t%d\t%d\t%d\n",
					th.Team, th.TotalDocuments, th.AverageScore, th.HighRisk, th.MediumRisk, th.LowRisk, th.Excellent)
			}
		} else {
			fmt.Fprintln(tw, "TEAM\tDOCS")
			for _, team := range slices.Sorted(maps.Keys(m.TotalByTeam)) {
				fmt.Fprintf(tw, "%s\t%d\n", team, m.TotalByTeam[team])
			}
		}
		tw.Flush()
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recommendations:")
	for _, r := range rep.Recommendations {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}
