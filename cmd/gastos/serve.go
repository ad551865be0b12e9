package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/gastos-must-flow/internal/config"
	"github.com/Veraticus/gastos-must-flow/internal/webhook"
	"github.com/Veraticus/gastos-must-flow/internal/worker"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WhatsApp webhook server",
		Long: `Accept Twilio WhatsApp webhooks, queue every inbound message and answer
health checks. Unless --no-worker is set, a worker processes the queue in
the same process.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default from server.addr)")
	cmd.Flags().Bool("no-worker", false, "only accept webhooks; run 'gastos worker' separately")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	v := viper.GetViper()
	noWorker, _ := cmd.Flags().GetBool("no-worker")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	handler, err := webhook.NewHandler(webhook.Config{
		Queue:             store,
		DB:                store,
		Logger:            slog.Default(),
		AuthToken:         v.GetString("twilio.auth_token"),
		PublicURL:         v.GetString("twilio.public_url"),
		Features:          config.Features(v),
		ValidateSignature: v.GetBool("twilio.validate_signature"),
	})
	if err != nil {
		return fmt.Errorf("failed to create webhook handler: %w", err)
	}

	var poller *worker.Poller
	if !noWorker && v.GetBool("worker.embedded") {
		if poller, err = newPoller(store); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webhook.Serve(gctx, v.GetString("server.addr"), handler, slog.Default())
	})
	if poller != nil {
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}

	return g.Wait()
}
