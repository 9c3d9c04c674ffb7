package main

import (
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/gol-logistics/gol-portal/cmd/gol/cli"
	"github.com/gol-logistics/gol-portal/jobs"
)

func newJobsCmd() *cobra.Command {
	var opts cli.JobsOptions
	cmd := &cobra.Command{
		Use:       "jobs {stats|test-email}",
		Short:     "Inspect the email queue or enqueue a test message",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"stats", "test-email"},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Action = args[0]
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()

			client := jobs.NewClient(redisOpts(cfg))
			defer client.Close()
			inspector := asynq.NewInspector(redisOpts(cfg))
			defer inspector.Close()

			return codeErr(cli.RunJobs(cmd.Context(), cli.NewJobsCLI(client, inspector), opts))
		},
	}
	cmd.Flags().StringVar(&opts.To, "to", "", "recipient for test-email")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "print stats as JSON")
	return cmd
}
