package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatters_KeepMessage(t *testing.T) {
	tests := []struct {
		name   string
		format func(string) string
		icon   string
	}{
		{name: "success", format: FormatSuccess, icon: SuccessIcon},
		{name: "error", format: FormatError, icon: ErrorIcon},
		{name: "warning", format: FormatWarning, icon: WarningIcon},
		{name: "info", format: FormatInfo, icon: InfoIcon},
		{name: "title", format: FormatTitle, icon: MoneyIcon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.format("gasto registrado")
			assert.Contains(t, out, "gasto registrado")
			assert.Contains(t, out, tt.icon)
		})
	}
}

func TestRenderBox(t *testing.T) {
	out := RenderBox("Resumen", "Total: S/ 50.00")
	assert.Contains(t, out, "Resumen")
	assert.Contains(t, out, "Total: S/ 50.00")
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(
		[]string{"ID", "Estado"},
		[][]string{
			{"q-1", "pending"},
			{"q-22"},
		},
	)

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Estado")
	assert.Contains(t, out, "pending")

	var rows []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "q-") {
			rows = append(rows, line)
		}
	}
	assert.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(rows[0]), "q-1"))
}
