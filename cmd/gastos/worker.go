package main

import (
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/gastos-must-flow/internal/cli"
	"github.com/Veraticus/gastos-must-flow/internal/pipeline"
	"github.com/Veraticus/gastos-must-flow/internal/worker"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued messages until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			poller, err := newPoller(store)
			if err != nil {
				return err
			}
			return poller.Run(ctx)
		},
	}
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <queue-item-id>",
		Short: "Process a single queued message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			processor, err := newProcessor(store)
			if err != nil {
				return err
			}

			out, err := processor.Process(ctx, args[0])
			if err != nil {
				return err
			}
			cmd.Println(describeOutcome(out))
			return nil
		},
	}
}

func drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Process every pending message once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			poller, err := newPoller(store)
			if err != nil {
				return err
			}

			pending, err := poller.CountPending(ctx)
			if err != nil {
				return err
			}
			if pending == 0 {
				cmd.Println(cli.FormatInfo("No hay mensajes pendientes"))
				return nil
			}

			bar := progressbar.NewOptions(pending,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Procesando mensajes...[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)

			stats, err := poller.Drain(ctx, func(pipeline.Outcome, error) {
				if addErr := bar.Add(1); addErr != nil {
					slog.Warn("failed to update progress bar", "error", addErr)
				}
			})
			_ = bar.Finish()

			cmd.Println(renderStats(stats))
			return err
		},
	}
}

func describeOutcome(out pipeline.Outcome) string {
	msg := fmt.Sprintf("%s: %s (status %s, retries %d)", out.ItemID, out.Kind, out.Status, out.RetryCount)
	switch {
	case out.NotifyErr != nil:
		return cli.FormatWarning(msg + ", reply not delivered: " + out.NotifyErr.Error())
	case out.Kind == pipeline.OutcomeFailed:
		return cli.FormatError(msg)
	case out.Kind == pipeline.OutcomeRequeued, out.Kind == pipeline.OutcomeSkipped:
		return cli.FormatWarning(msg)
	default:
		return cli.FormatSuccess(msg)
	}
}

func renderStats(stats worker.Stats) string {
	return cli.RenderBox(cli.ChartIcon+" Resultado", cli.RenderTable(
		[]string{"Resultado", "Cantidad"},
		[][]string{
			{"procesados", fmt.Sprint(stats.Processed)},
			{"completados", fmt.Sprint(stats.Completed)},
			{"rechazados", fmt.Sprint(stats.Rejected)},
			{"reintentos", fmt.Sprint(stats.Requeued)},
			{"fallidos", fmt.Sprint(stats.Failed)},
			{"omitidos", fmt.Sprint(stats.Skipped)},
			{"errores", fmt.Sprint(stats.Errors)},
		},
	))
}
