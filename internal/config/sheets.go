package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/gastos-must-flow/internal/sheets"
)

// LoadSheetsConfig loads Google Sheets configuration. Viper keys (config file
// or GASTOS_SHEETS_* env) win over the GOOGLE_SHEETS_* variables.
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	config.ServiceAccountPath = ExpandPath(firstSet(v, "sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"))
	config.ClientID = firstSet(v, "sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID")
	config.ClientSecret = firstSet(v, "sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET")
	config.RefreshToken = firstSet(v, "sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN")
	config.SpreadsheetID = firstSet(v, "sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID")
	if name := firstSet(v, "sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME"); name != "" {
		config.SpreadsheetName = name
	}
	if tz := v.GetString("locale.timezone"); tz != "" {
		config.TimeZone = tz
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SheetsClientCredentials returns the OAuth2 client pair without validating
// the rest of the Sheets configuration.
func SheetsClientCredentials(v *viper.Viper) (clientID, clientSecret string) {
	return firstSet(v, "sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID"),
		firstSet(v, "sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET")
}

func firstSet(v *viper.Viper, key, env string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return os.Getenv(env)
}
