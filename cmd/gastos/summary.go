package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/gastos-must-flow/internal/cli"
	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/message"
	"github.com/Veraticus/gastos-must-flow/internal/service"
	"github.com/Veraticus/gastos-must-flow/internal/sheets"
)

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary <user-id>",
		Short: "Show a user's expense totals by category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			month, _ := cmd.Flags().GetString("month")
			recent, _ := cmd.Flags().GetInt("recent")

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

			report := sheets.BuildReport(user.Name(), period, records, tax)
			cmd.Println(renderSummary(report, month))

			if recent > 0 && len(report.Expenses) > 0 {
				cmd.Println()
				cmd.Println(renderRecent(report.Expenses[:min(recent, len(report.Expenses))], loc))
			}
			return nil
		},
	}
	cmd.Flags().String("month", "", "restrict to one month (YYYY-MM)")
	cmd.Flags().Int("recent", 0, "also list the N most recent expenses")
	return cmd
}

// monthPeriod returns the [start, start+1 month) range of month in loc, or
// an open range when month is empty.
func monthPeriod(month string, loc *time.Location) (sheets.DateRange, error) {
	if month == "" {
		return sheets.DateRange{}, nil
	}
	start, err := time.ParseInLocation(message.MonthLayout, month, loc)
	if err != nil {
		return sheets.DateRange{}, fmt.Errorf("%w: month %q must be YYYY-MM", common.ErrInvalidInput, month)
	}
	return sheets.DateRange{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

func renderSummary(report sheets.Report, month string) string {
	title := fmt.Sprintf("%s Gastos de %s", cli.ChartIcon, report.Owner)
	if month != "" {
		title += " (" + month + ")"
	}
	if len(report.Expenses) == 0 {
		return cli.RenderBox(title, cli.SubtleStyle.Render("Sin gastos registrados"))
	}

	rows := make([][]string, 0, len(report.Categories))
	for _, c := range report.Categories {
		rows = append(rows, []string{c.Category, fmt.Sprint(c.Count), "S/ " + c.Amount.StringFixed(2)})
	}
	body := fmt.Sprintf("%s S/ %s\n%s %d\n\n%s",
		cli.BoldStyle.Render("Total:"), report.Total.StringFixed(2),
		cli.BoldStyle.Render("Cantidad:"), len(report.Expenses),
		cli.RenderTable([]string{"Categoría", "Gastos", "Monto"}, rows))
	return cli.RenderBox(title, body)
}

func renderRecent(expenses []sheets.ExpenseRow, loc *time.Location) string {
	rows := make([][]string, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, []string{
			e.Date.In(loc).Format("2006-01-02"),
			e.Currency + " " + e.Amount.StringFixed(2),
			truncate(e.Description, 40),
			e.Category,
			e.PaymentMethod,
		})
	}
	return cli.RenderTable([]string{"Fecha", "Monto", "Descripción", "Categoría", "Método"}, rows)
}
