package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/gastos-must-flow/internal/cli"
	"github.com/Veraticus/gastos-must-flow/internal/config"
	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/service"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the inbound message queue",
	}
	cmd.AddCommand(queueListCmd())
	cmd.AddCommand(queueEnqueueCmd())
	cmd.AddCommand(queueRecoverCmd())
	return cmd
}

func queueListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued messages, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			items, err := store.ListQueueItems(ctx, service.QueueFilter{
				Status: model.QueueStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if len(items) == 0 {
				cmd.Println(cli.FormatInfo("La cola está vacía"))
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					item.ID,
					statusLabel(item.Status),
					item.ChannelIdentity,
					queueContent(item),
					fmt.Sprint(item.RetryCount),
					item.CreatedAt.Local().Format("2006-01-02 15:04"),
					truncate(item.LastError, 40),
				})
			}
			cmd.Println(cli.RenderTable(
				[]string{"ID", "Estado", "Remitente", "Contenido", "Reintentos", "Recibido", "Último error"},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().String("status", "", "filter by status (pending, processing, completed, failed)")
	cmd.Flags().Int("limit", 50, "maximum number of items")
	return cmd
}

func queueEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue <phone> <message>",
		Short: "Queue a message as if it had arrived over WhatsApp",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mediaURL, _ := cmd.Flags().GetString("media-url")
			mediaType, _ := cmd.Flags().GetString("media-type")

			identity, err := identityArg(args[0])
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			item := &model.QueueItem{ChannelIdentity: identity, RawMessage: args[1]}
			if mediaURL != "" {
				item.Media = &model.MediaReference{URL: mediaURL, MimeType: mediaType}
			}
			if err := store.EnqueueMessage(ctx, item); err != nil {
				return err
			}
			cmd.Println(cli.FormatSuccess("Mensaje encolado: " + item.ID))
			return nil
		},
	}
	cmd.Flags().String("media-url", "", "attachment URL hosted by the gateway")
	cmd.Flags().String("media-type", "", "attachment MIME type")
	return cmd
}

func queueRecoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Return messages stuck in processing to pending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				olderThan = config.WorkerConfig(viper.GetViper()).StaleAfter
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			n, err := store.RecoverStaleQueueItems(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("%d mensajes devueltos a la cola", n)))
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 0, "only recover items claimed before this long ago (default worker.stale_after)")
	return cmd
}

func statusLabel(status model.QueueStatus) string {
	switch status {
	case model.QueueCompleted:
		return cli.SuccessStyle.Render(string(status))
	case model.QueueFailed:
		return cli.ErrorStyle.Render(string(status))
	case model.QueueProcessing:
		return cli.InfoStyle.Render(string(status))
	default:
		return cli.WarningStyle.Render(string(status))
	}
}

func queueContent(item model.QueueItem) string {
	text := truncate(strings.ReplaceAll(item.RawMessage, "\n", " "), 40)
	if item.HasMedia() {
		if text == "" {
			return "📷"
		}
		return "📷 " + text
	}
	return text
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
