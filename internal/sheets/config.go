// Package sheets exports a user's expenses and their summary to Google Sheets.
package sheets

import (
	"fmt"
	"time"
)

// Config holds the configuration for the Google Sheets writer.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	TimeZone           string
	BatchSize          int
	RetryAttempts      int
	RetryDelay         time.Duration
	EnableFormatting   bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableFormatting: true,
		SpreadsheetName:  "Gastos",
		TimeZone:         "America/Lima",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
	}
}

// HasOAuth reports whether the OAuth2 triplet is complete.
func (c *Config) HasOAuth() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	hasServiceAccount := c.ServiceAccountPath != ""

	switch {
	case !c.HasOAuth() && !hasServiceAccount:
		return fmt.Errorf("no authentication method configured")
	case c.HasOAuth() && hasServiceAccount:
		return fmt.Errorf("multiple authentication methods configured; use either OAuth2 or service account")
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive")
	case c.RetryAttempts < 0:
		return fmt.Errorf("retry attempts cannot be negative")
	case c.RetryDelay < 0:
		return fmt.Errorf("retry delay cannot be negative")
	}
	return nil
}
