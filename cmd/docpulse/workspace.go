package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adrian-1-cardona/DocPulse/internal/workspace"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the scored workspace as a JSON bundle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		docs, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		data, err := workspace.Marshal(workspace.Export(docs, time.Now()))
		if err != nil {
			return err
		}

		if exportOut == "" || exportOut == "-" {
			if _, err := cmd.OutOrStdout().Write(append(data, '\n')); err != nil {
				return err
			}
		} else {
			if err := os.WriteFile(exportOut, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", exportOut, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d documents to %s\n", len(docs), exportOut)
		}
		newPublisher(st).Exported(cmd.Context(), actor(), len(docs))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the workspace with an exported bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		docs, err := workspace.Import(data)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := newPublisher(st).Imported(cmd.Context(), actor(), docs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d documents\n", len(docs))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")
}
