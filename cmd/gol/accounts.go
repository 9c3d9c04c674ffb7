package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gol-logistics/gol-portal/cmd/gol/cli"
	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/notify"
	"github.com/gol-logistics/gol-portal/internal/platform/db"
	"github.com/gol-logistics/gol-portal/internal/shared"
	"github.com/gol-logistics/gol-portal/jobs"
)

func newCreateRootCmd() *cobra.Command {
	var (
		opts          cli.CreateRootOptions
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "create-root",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			if passwordStdin {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					opts.Password = strings.TrimRight(scanner.Text(), "\r")
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}

			pool, err := db.New(cmd.Context(), cfg.PGDSN, cfg.PGMaxConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			jobClient := jobs.NewClient(redisOpts(cfg))
			defer func() {
				if err := jobClient.Close(); err != nil {
					logger.Warn("jobs client close", slog.Any("error", err))
				}
			}()

			resolver := identity.NewResolver(identity.NewRepository(pool), shared.NewAuditLogger(pool), logger,
				identity.WithNotifications(notify.NewNotifier(jobClient, logger, cfg.PublicURL)),
			)
			return codeErr(cli.CreateRoot(cmd.Context(), resolver, opts))
		},
	}
	cmd.Flags().StringVar(&opts.Email, "email", "", "administrator email")
	cmd.Flags().StringVar(&opts.Username, "username", "", "administrator username")
	cmd.Flags().StringVar(&opts.Password, "password", "", "administrator password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	return cmd
}
