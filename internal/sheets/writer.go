package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/gastos-must-flow/internal/common"
)

// Tab titles written by the exporter.
const (
	ExpensesTab = "Gastos"
	SummaryTab  = "Resumen"
)

const (
	dateLayout     = "2006-01-02"
	currencyFormat = `"S/" #,##0.00`
)

var expenseHeader = []any{
	"Fecha", "Monto", "Moneda", "Descripción", "Categoría", "Subcategoría", "Método de pago", "Comprobante",
}

// Writer exports reports to a Google spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// Write replaces the contents of both tabs with report and returns the
// spreadsheet ID it wrote to.
func (w *Writer) Write(ctx context.Context, report Report) (string, error) {
	w.logger.Info("starting sheets export",
		"owner", report.Owner,
		"expenses", len(report.Expenses),
		"period", periodLabel(report.Period))

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	tabIDs, err := w.ensureTabs(ctx, spreadsheetID)
	if err != nil {
		return spreadsheetID, fmt.Errorf("failed to prepare tabs: %w", err)
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	tabs := []struct {
		title  string
		values [][]any
	}{
		{SummaryTab, summaryValues(report)},
		{ExpensesTab, expenseValues(report)},
	}
	for _, tab := range tabs {
		writeErr := common.WithRetry(ctx, func() error {
			if clearErr := w.clearTab(ctx, spreadsheetID, tab.title); clearErr != nil {
				return clearErr
			}
			return w.writeData(ctx, spreadsheetID, tab.title, tab.values)
		}, retryOpts)
		if writeErr != nil {
			return spreadsheetID, fmt.Errorf("failed to write %s: %w", tab.title, writeErr)
		}
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, tabIDs)
		}, retryOpts)
		if err != nil {
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("sheets export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(report.Expenses))

	return spreadsheetID, nil
}

// createSheetsService authenticates with a service account key when one is
// configured and with the OAuth2 refresh token otherwise.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := oauthConfig(config.ClientID, config.ClientSecret, "")
		tokenSource = client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
			Locale:   "es_PE",
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: SummaryTab}},
			{Properties: &sheets.SheetProperties{Title: ExpensesTab}},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, nil
}

// ensureTabs adds any missing tab and returns the sheet ID of each.
func (w *Writer) ensureTabs(ctx context.Context, spreadsheetID string) (map[string]int64, error) {
	existing, err := w.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to access spreadsheet %s: %w", spreadsheetID, err)
	}

	ids := make(map[string]int64)
	for _, sheet := range existing.Sheets {
		if sheet.Properties != nil {
			ids[sheet.Properties.Title] = sheet.Properties.SheetId
		}
	}

	var requests []*sheets.Request
	for _, title := range []string{SummaryTab, ExpensesTab} {
		if _, ok := ids[title]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: title},
				},
			})
		}
	}
	if len(requests) == 0 {
		return ids, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to add tabs: %w", err)
	}
	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}
	return ids, nil
}

func (w *Writer) clearTab(ctx context.Context, spreadsheetID, tab string) error {
	_, err := w.service.Spreadsheets.Values.
		Clear(spreadsheetID, tab+"!A:Z", &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}

// writeData writes values in batches of Config.BatchSize rows.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, tab string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))
		batch := values[i:end]

		rangeStr := fmt.Sprintf("%s!A%d", tab, i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{Values: batch}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "tab", tab, "start_row", i+1, "rows", len(batch))
	}
	return nil
}

func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, tabIDs map[string]int64) error {
	expensesID := tabIDs[ExpensesTab]
	summaryID := tabIDs[SummaryTab]

	requests := []*sheets.Request{
		boldRows(summaryID, 0, 1, 16),
		boldRows(expensesID, 0, 1, 0),
		currencyCells(expensesID, 1, 1, 0),
		currencyCells(summaryID, 1, summaryTotalRow, summaryTotalRow+1),
		currencyCells(summaryID, 2, summaryFirstCategoryRow, 0),
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        expensesID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    expensesID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(len(expenseHeader)),
				},
			},
		},
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

func boldRows(sheetID, start, end int64, fontSize int64) *sheets.Request {
	format := &sheets.TextFormat{Bold: true, FontSize: fontSize}
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:       sheetID,
				StartRowIndex: start,
				EndRowIndex:   end,
			},
			Cell:   &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{TextFormat: format}},
			Fields: "userEnteredFormat.textFormat",
		},
	}
}

// currencyCells formats one column from row start up to end; end 0 is open.
func currencyCells(sheetID, column, start, end int64) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    start,
				EndRowIndex:      end,
				StartColumnIndex: column,
				EndColumnIndex:   column + 1,
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					NumberFormat: &sheets.NumberFormat{Type: "CURRENCY", Pattern: currencyFormat},
				},
			},
			Fields: "userEnteredFormat.numberFormat",
		},
	}
}

// Zero-based rows of the summary tab layout.
const (
	summaryTotalRow         = 1
	summaryFirstCategoryRow = 5
)

// summaryValues lays out totals followed by the category breakdown.
func summaryValues(report Report) [][]any {
	values := make([][]any, 0, 6+len(report.Categories))
	values = append(values,
		[]any{"Resumen de Gastos", periodLabel(report.Period)},
		[]any{"Total", report.Total.StringFixed(2)},
		[]any{"Cantidad", len(report.Expenses)},
		[]any{},
		[]any{"Categoría", "Cantidad", "Monto"},
	)
	for _, c := range report.Categories {
		values = append(values, []any{c.Category, c.Count, c.Amount.StringFixed(2)})
	}
	return values
}

// expenseValues is the header row plus one row per expense.
func expenseValues(report Report) [][]any {
	values := make([][]any, 0, len(report.Expenses)+1)
	values = append(values, expenseHeader)
	for _, e := range report.Expenses {
		values = append(values, []any{
			e.Date.Format(dateLayout),
			e.Amount.StringFixed(2),
			e.Currency,
			e.Description,
			e.Category,
			e.Subcategory,
			e.PaymentMethod,
			e.VoucherType,
		})
	}
	return values
}

func periodLabel(period DateRange) string {
	switch {
	case period.Start.IsZero() && period.End.IsZero():
		return "Todo"
	case period.End.IsZero():
		return "Desde " + period.Start.Format(dateLayout)
	case period.Start.IsZero():
		return "Hasta " + period.End.AddDate(0, 0, -1).Format(dateLayout)
	default:
		return period.Start.Format(dateLayout) + " a " + period.End.AddDate(0, 0, -1).Format(dateLayout)
	}
}
