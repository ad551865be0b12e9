package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/gastos-must-flow/internal/cli"
	"github.com/Veraticus/gastos-must-flow/internal/config"
	"github.com/Veraticus/gastos-must-flow/internal/service"
	"github.com/Veraticus/gastos-must-flow/internal/sheets"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <user-id>",
		Short: "Export a user's expenses to Google Sheets",
		Long: `Write a summary tab and an expense detail tab to Google Sheets.

Authentication uses either a service account key (sheets.service_account_path)
or an OAuth2 refresh token; run 'gastos export auth' once to obtain one.`,
		Args: cobra.ExactArgs(1),
		RunE: runExport,
	}
	cmd.Flags().String("month", "", "restrict to one month (YYYY-MM)")
	cmd.AddCommand(exportAuthCmd())
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	month, _ := cmd.Flags().GetString("month")

	sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("google sheets not configured: %w", err)
	}

	loc, err := location()
	if err != nil {
		return err
	}
	period, err := monthPeriod(month, loc)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	user, err := store.GetUser(ctx, args[0])
	if err != nil {
		return err
	}
	tax, err := store.GetTaxonomy(ctx, user.ID)
	if err != nil {
		return err
	}
	records, err := store.ListExpenses(ctx, user.ID, service.ExpenseFilter{Start: period.Start, End: period.End})
	if err != nil {
		return err
	}

	writer, err := sheets.NewWriter(ctx, *sheetsCfg, nil)
	if err != nil {
		return err
	}
	spreadsheetID, err := writer.Write(ctx, sheets.BuildReport(user.Name(), period, records, tax))
	if err != nil {
		return err
	}

	cmd.Println(cli.FormatSuccess(fmt.Sprintf("%d gastos exportados a https://docs.google.com/spreadsheets/d/%s",
		len(records), spreadsheetID)))
	return nil
}

func exportAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Obtain a Google OAuth2 refresh token for Sheets export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokenFile, _ := cmd.Flags().GetString("token-file")
			listen, _ := cmd.Flags().GetString("listen")
			clientID, clientSecret := config.SheetsClientCredentials(viper.GetViper())

			token, err := sheets.Authorize(cmd.Context(), sheets.AuthConfig{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				TokenFile:    config.ExpandPath(tokenFile),
				ListenAddr:   listen,
			}, func(url string) {
				cmd.Println(cli.FormatInfo("Abre esta URL para autorizar el acceso:"))
				cmd.Println(url)
			})
			if err != nil {
				return err
			}
			if token.RefreshToken == "" {
				cmd.Println(cli.FormatWarning("Google no devolvió un refresh token; revoca el acceso y vuelve a intentar"))
				return nil
			}

			cmd.Println(cli.FormatSuccess("Autorización completa. Agrega a tu configuración:"))
			cmd.Println("sheets:\n  refresh_token: " + token.RefreshToken)
			return nil
		},
	}
	cmd.Flags().String("token-file", "", "also save the full token to this file")
	cmd.Flags().String("listen", "localhost:8085", "address of the local OAuth callback server")
	return cmd
}
