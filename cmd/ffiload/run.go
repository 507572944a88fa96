package main

import (
	"fmt"
	"io"

	"github.com/koustreak/ffiload/internal/importer"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run [file...]",
		Short: "Import every pending export, or the named export files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			var reports []*importer.Report
			if len(args) > 0 {
				for _, path := range args {
					rep, err := a.importer.ImportPath(ctx, path)
					if rep != nil {
						reports = append(reports, rep)
					}
					if err != nil {
						return err
					}
				}
			} else {
				src, err := a.openSource(ctx)
				if err != nil {
					return err
				}
				defer src.Close()

				reports, err = a.importer.Run(ctx, src)
				if err != nil {
					return err
				}
			}

			if !quiet {
				if err := printSummary(cmd.OutOrStdout(), reports); err != nil {
					return err
				}
			}
			if failed := countStatus(reports, importer.StatusFailure); failed > 0 {
				return fmt.Errorf("%d of %d exports failed", failed, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the per-file summary")
	return cmd
}

type summaryLine struct {
	File    string          `yaml:"file"`
	Status  importer.Status `yaml:"status"`
	Verdict string          `yaml:"verdict,omitempty"`
	Tables  int             `yaml:"tables"`
	Written int64           `yaml:"rows_written"`
	Error   string          `yaml:"error,omitempty"`
}

func printSummary(w io.Writer, reports []*importer.Report) error {
	lines := make([]summaryLine, 0, len(reports))
	for _, r := range reports {
		l := summaryLine{File: r.File, Status: r.Status, Verdict: r.Verdict, Tables: len(r.Tables), Error: r.Error}
		for _, t := range r.Tables {
			l.Written += t.Written
		}
		lines = append(lines, l)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(lines)
}

func countStatus(reports []*importer.Report, s importer.Status) int {
	n := 0
	for _, r := range reports {
		if r.Status == s {
			n++
		}
	}
	return n
}
