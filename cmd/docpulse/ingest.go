package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/pipeline"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/publisher"
	"github.com/adrian-1-cardona/DocPulse/internal/intake"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <glob>...",
	Short: "Score files matching one or more glob patterns",
	Long: `Score every file matching the given doublestar patterns (for example
'docs/**/*.md'). Metadata comes from YAML frontmatter in .md and .txt files
and from a <file>.meta.yaml sidecar for other formats. Re-ingesting a path
replaces its previous score.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var paths []string
		for _, pattern := range args {
			found, err := intake.Discover(pattern, cfg.Intake.AllowedExtensions)
			if err != nil {
				return err
			}
			paths = append(paths, found...)
		}
		slices.Sort(paths)
		paths = slices.Compact(paths)
		if len(paths) == 0 {
			return fmt.Errorf("no eligible files match %s", strings.Join(args, " "))
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		p, err := newPipeline()
		if err != nil {
			return err
		}

		outcomes, err := ingestPaths(cmd.Context(), st, p, newPublisher(st), paths)
		if err != nil {
			return err
		}
		failed := printOutcomes(cmd.OutOrStdout(), outcomes)
		if failed == len(outcomes) {
			return fmt.Errorf("all %d files failed", failed)
		}
		return nil
	},
}

var (
	watchPattern  string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Re-score files under a directory as they change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		p, err := newPipeline()
		if err != nil {
			return err
		}
		pub := newPublisher(st)
		out := cmd.OutOrStdout()

		w := intake.NewWatcher(args[0], watchPattern, cfg.Intake.AllowedExtensions, watchDebounce)
		fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", args[0])
		return w.Run(cmd.Context(), func(ch intake.Change) {
			ctx := cmd.Context()
			if ch.Removed {
				n, err := removePath(ctx, st, pub, ch.Path)
				if err != nil {
					fmt.Fprintf(out, "remove %s: %v\n", ch.Path, err)
				} else if n > 0 {
					fmt.Fprintf(out, "removed %s\n", ch.Path)
				}
				return
			}
			outcomes, err := ingestPaths(ctx, st, p, pub, []string{ch.Path})
			if err != nil {
				fmt.Fprintf(out, "ingest %s: %v\n", ch.Path, err)
				return
			}
			printOutcomes(out, outcomes)
		})
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchPattern, "pattern", "**", "doublestar pattern relative to the watched directory")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is re-scored")
}

// outcome is the result for one file.
type outcome struct {
	Path     string
	Document *document.Document
	Err      string
	Fields   map[string]string
}

// ingestPaths scores paths and stores the successes in one write. A path
// that was ingested before keeps its document ID.
func ingestPaths(ctx context.Context, st store.Store, p *pipeline.Pipeline, pub *publisher.Publisher, paths []string) ([]outcome, error) {
	outcomes := make([]outcome, len(paths))
	reqs := make([]ingestion.IngestRequest, 0, len(paths))
	slot := make([]int, 0, len(paths))
	for i, path := range paths {
		outcomes[i].Path = path
		req, err := intake.ReadFile(path)
		if err != nil {
			outcomes[i].Err = err.Error()
			continue
		}
		reqs = append(reqs, req)
		slot = append(slot, i)
	}

	existing, err := idsByPath(ctx, st)
	if err != nil {
		return nil, err
	}

	docs := make([]document.Document, 0, len(reqs))
	rejected := 0
	for _, res := range p.IngestBatch(ctx, reqs) {
		o := &outcomes[slot[res.Index]]
		if res.Document == nil {
			o.Err, o.Fields = res.Error, res.Fields
			rejected++
			continue
		}
		doc := *res.Document
		if id, ok := existing[doc.Path]; ok {
			doc.ID = id
		}
		docs = append(docs, doc)
		o.Document = &docs[len(docs)-1]
	}
	if rejected > 0 {
		pub.Rejected(rejected)
	}
	if err := pub.Ingested(ctx, actor(), docs...); err != nil {
		return nil, fmt.Errorf("storing documents: %w", err)
	}
	return outcomes, nil
}

// removePath deletes every document recorded for path.
func removePath(ctx context.Context, st store.Store, pub *publisher.Publisher, path string) (int, error) {
	docs, err := st.List(ctx)
	if err != nil {
		return 0, err
	}
	target := filepath.ToSlash(path)
	n := 0
	for _, d := range docs {
		if d.Path != target {
			continue
		}
		if err := pub.Deleted(ctx, actor(), d.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func idsByPath(ctx context.Context, st store.Store) (map[string]string, error) {
	docs, err := st.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	ids := make(map[string]string, len(docs))
	for _, d := range docs {
		if d.Path != "" {
			ids[d.Path] = d.ID
		}
	}
	return ids, nil
}

// printOutcomes writes a result table and returns the number of failures.
func printOutcomes(w io.Writer, outcomes []outcome) int {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tSTATUS\tPATH\tTITLE")
	failed := 0
	for _, o := range outcomes {
		if o.Document == nil {
			failed++
			msg := o.Err
			for _, k := range slices.Sorted(maps.Keys(o.Fields)) {
				msg += fmt.Sprintf("; %s: %s", k, o.Fields[k])
			}
			fmt.Fprintf(tw, "-\terror\t%s\t%s\n", o.Path, msg)
			continue
		}
		d := o.Document
		fmt.Fprintf(tw, "%.0f\t%s\t%s\t%s\n", d.OverallScore, d.Risk().Status(), o.Path, d.Title)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d scored, %d failed\n", len(outcomes)-failed, failed)
	return failed
}
