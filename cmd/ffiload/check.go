package main

import (
	"os"

	"github.com/koustreak/ffiload/internal/errs"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Classify one export as new, partial or duplicate without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return errs.Wrap(errs.ErrKindNotFound, "open export", err)
			}
			defer f.Close()

			rep, err := a.importer.Check(ctx, f)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(rep)
		},
	}
}
