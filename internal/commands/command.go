package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sandeepkv93/vigil/internal/model"
)

type Type string

const (
	TypeAdd     Type = "add"
	TypeSnooze  Type = "snooze"
	TypeDismiss Type = "dismiss"
	TypeToggle  Type = "toggle"
	TypeDelete  Type = "delete"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type AddArgs struct {
	Time  model.ClockTime
	Days  model.Weekdays
	Label string
}

// SnoozeArgs with zero Minutes uses the alarm's own snooze length.
type SnoozeArgs struct {
	Minutes int
}

// RowArgs addresses an alarm by its 1-based row in the alarm table.
type RowArgs struct {
	Row int
}

type Command struct {
	Type   Type
	Raw    string
	Add    *AddArgs
	Snooze *SnoozeArgs
	Row    *RowArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeSnooze:
		return parseSnooze(input, args)
	case TypeDismiss:
		return Command{Type: TypeDismiss, Raw: input}, nil
	case TypeToggle, TypeDelete:
		return parseRow(input, Type(head), args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

// parseAdd reads "HH:MM [days] [label...]". The second word is taken as
// days only when it parses as a weekday set.
func parseAdd(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires a time (HH:MM)"}
	}
	at, err := model.ParseClockTime(args[0])
	if err != nil {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid time %q", args[0])}
	}
	rest := args[1:]
	days := model.Weekdays{}
	if len(rest) > 0 {
		if parsed, err := model.ParseWeekdays(rest[0]); err == nil && len(parsed) > 0 {
			days = parsed
			rest = rest[1:]
		}
	}
	label := strings.TrimSpace(strings.Join(rest, " "))
	return Command{Type: TypeAdd, Raw: raw, Add: &AddArgs{Time: at, Days: days, Label: label}}, nil
}

func parseSnooze(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{Type: TypeSnooze, Raw: raw, Snooze: &SnoozeArgs{}}, nil
	}
	minutes, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(args[0]), "m"))
	if err != nil || minutes <= 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("snooze minutes must be a positive number, got %q", args[0])}
	}
	return Command{Type: TypeSnooze, Raw: raw, Snooze: &SnoozeArgs{Minutes: minutes}}, nil
}

func parseRow(raw string, typ Type, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s requires a row number", typ)}
	}
	row, err := strconv.Atoi(args[0])
	if err != nil || row <= 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid row %q", args[0])}
	}
	return Command{Type: typ, Raw: raw, Row: &RowArgs{Row: row}}, nil
}
