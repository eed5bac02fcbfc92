package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List the output fields of each configured source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync()
			return runSchema(cmd.OutOrStdout(), logger)
		},
	}
}

func runSchema(out io.Writer, logger *zap.Logger) error {
	sources, err := openSources(logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range sources {
			s.Close()
		}
	}()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tFIELD\tDESCRIPTION")
	for _, s := range sources {
		for _, f := range s.Fields() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name(), f.Name, f.Description)
		}
	}
	return tw.Flush()
}
