package model

// Command identifies a non-expense chat command.
type Command string

// Supported commands.
const (
	CommandSummary Command = "summary"
	CommandHelp    Command = "help"
	CommandWelcome Command = "welcome"
)

// Inbound is the classified form of a queue item. The set of variants is
// closed: CommandEvent, TextCandidate, ImageCandidate and EmptyEvent.
type Inbound interface {
	inbound()
}

// CommandEvent is a recognized chat command. Month is an optional YYYY-MM
// filter for summaries.
type CommandEvent struct {
	Command Command
	Month   string
}

// TextCandidate is free text that should describe an expense.
type TextCandidate struct {
	Text string
}

// ImageCandidate is an attachment that should be a receipt or payment
// screenshot. Caption is any sanitized text sent alongside it.
type ImageCandidate struct {
	Media   MediaReference
	Caption string
}

// EmptyEvent carries nothing the pipeline can use.
type EmptyEvent struct{}

func (CommandEvent) inbound()   {}
func (TextCandidate) inbound()  {}
func (ImageCandidate) inbound() {}
func (EmptyEvent) inbound()     {}
