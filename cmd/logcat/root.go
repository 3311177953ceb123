package main

import (
	"context"

	"github.com/pentops/logcat/log"
	"github.com/pentops/logcat/pretty"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logcat",
		Short: "Pretty print JSON payloads of log lines read from stdin",
		Long: `
logcat reads lines shaped like '<token> <token> <json>' from stdin and
prints them with the JSON payload indented. Lines whose payload is not
JSON are printed unchanged. A line with fewer than three fields stops
the run with exit status 1.
`,
		Args: cobra.NoArgs,
		RunE: RootCmd,
	}
}

func RootCmd(cmd *cobra.Command, args []string) error {
	// arguments are valid by now, failures from here on are logged instead
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = log.WithNewTrace(ctx)
	ctx = log.WithField(ctx, "app", "logcat")

	printer := pretty.NewPrinter(cmd.OutOrStdout())
	lines, err := printer.Copy(ctx, cmd.InOrStdin())
	if err != nil {
		log.WithError(log.WithField(ctx, "linesWritten", lines), err).Error("stopped reading input")
		return err
	}

	log.WithField(ctx, "linesWritten", lines).Debug("done")
	return nil
}
