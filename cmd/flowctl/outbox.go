package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"edugenius/backend/internal/config"
	"edugenius/backend/internal/repository"
	"edugenius/backend/internal/services"
)

func newOutboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and relay contact messages stored in Postgres",
	}

	var limit int
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List undelivered contact messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outbox, _, closeFn, err := a.outbox(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			msgs, err := outbox.Pending(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tFROM\tSUBJECT")
			for _, m := range msgs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.CreatedAt.Format("2006-01-02 15:04"), m.Email, m.Subject)
			}
			return tw.Flush()
		},
	}
	pending.Flags().IntVar(&limit, "limit", 50, "Maximum number of messages")

	var recipient string
	deliver := &cobra.Command{
		Use:   "deliver",
		Short: "Hand pending messages to the support log and mark them delivered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outbox, cfg, closeFn, err := a.outbox(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			logger, err := a.logger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			n, err := services.RelayOutbox(cmd.Context(), outbox, &services.LogSender{Logger: logger, Recipient: recipient}, limit)
			fmt.Fprintf(cmd.OutOrStdout(), "delivered %d message(s)\n", n)
			return err
		},
	}
	deliver.Flags().IntVar(&limit, "limit", 50, "Maximum number of messages")
	deliver.Flags().StringVar(&recipient, "recipient", "support@edugenius.example", "Support address")

	cmd.AddCommand(pending, deliver)
	return cmd
}

func (a *app) outbox(cmd *cobra.Command) (repository.ContactOutbox, *config.Config, func(), error) {
	cfg, err := config.LoadConfig(a.configFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if !cfg.DB.Enabled {
		return nil, nil, nil, fmt.Errorf("db.enabled is false; the outbox needs Postgres")
	}
	pool, err := pgxpool.New(cmd.Context(), cfg.DSN())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	outbox := repository.NewPostgresContactOutbox(pool)
	if err := outbox.EnsureSchema(cmd.Context()); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return outbox, cfg, pool.Close, nil
}
