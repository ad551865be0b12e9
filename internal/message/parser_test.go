package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/gastos-must-flow/internal/model"
)

func TestParseExpense(t *testing.T) {
	tests := []struct {
		in          string
		amount      string
		description string
	}{
		{"50 almuerzo", "50", "almuerzo"},
		{"Gasté 15 soles en bodega", "15", "bodega"},
		{"gaste 12.50 en menú del día", "12.5", "menú del día"},
		{"PAGUÉ 120 sol en luz", "120", "luz"},
		{"pague 8 pasaje", "8", "pasaje"},
		{"25.5 soles en taxi al aeropuerto", "25.5", "taxi al aeropuerto"},
		{"30 en cine", "30", "cine"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseExpense(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.amount, got.Amount.String())
			assert.Equal(t, tt.description, got.Description)
			assert.Equal(t, model.SourcePattern, got.Source)
		})
	}
}

func TestParseExpense_NoMatch(t *testing.T) {
	inputs := []string{
		"hola",
		"compré medicina por 80",
		"0 almuerzo",
		"12.345 almuerzo",
		"50",
		"gasté mucho en la feria",
		"",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, ok := ParseExpense(in)
			assert.False(t, ok)
		})
	}
}
