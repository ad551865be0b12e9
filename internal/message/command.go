package message

import (
	"strings"
	"time"

	"github.com/Veraticus/gastos-must-flow/internal/model"
)

var commandWords = map[string]model.Command{
	"resumen":    model.CommandSummary,
	"summary":    model.CommandSummary,
	"total":      model.CommandSummary,
	"ver gastos": model.CommandSummary,
	"ayuda":      model.CommandHelp,
	"help":       model.CommandHelp,
	"comandos":   model.CommandHelp,
	"commands":   model.CommandHelp,
	"hola":       model.CommandWelcome,
	"hi":         model.CommandWelcome,
	"inicio":     model.CommandWelcome,
	"start":      model.CommandWelcome,
}

// MonthLayout is the format of the optional summary month argument.
const MonthLayout = "2006-01"

// ParseCommand matches text against the command table. Matching ignores case,
// surrounding space and a single leading slash. Summary keywords may be
// followed by a month such as "resumen 2025-11".
func ParseCommand(text string) (model.CommandEvent, bool) {
	normalized := strings.Join(strings.Fields(Lower(text)), " ")
	normalized = strings.TrimSpace(strings.TrimPrefix(normalized, "/"))
	if normalized == "" {
		return model.CommandEvent{}, false
	}

	if cmd, ok := commandWords[normalized]; ok {
		return model.CommandEvent{Command: cmd}, true
	}

	// Month argument: keyword, space, YYYY-MM.
	idx := strings.LastIndexByte(normalized, ' ')
	if idx < 0 {
		return model.CommandEvent{}, false
	}
	head, arg := normalized[:idx], normalized[idx+1:]
	if commandWords[head] != model.CommandSummary {
		return model.CommandEvent{}, false
	}
	if _, err := time.Parse(MonthLayout, arg); err != nil {
		return model.CommandEvent{}, false
	}
	return model.CommandEvent{Command: model.CommandSummary, Month: arg}, true
}
