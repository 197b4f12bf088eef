package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Add     func(AddArgs) (Result, error)
	Snooze  func(SnoozeArgs) (Result, error)
	Dismiss func() (Result, error)
	Toggle  func(RowArgs) (Result, error)
	Delete  func(RowArgs) (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeAdd:
		if handlers.Add == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "add handler not configured"}
		}
		return handlers.Add(*cmd.Add)
	case TypeSnooze:
		if handlers.Snooze == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "snooze handler not configured"}
		}
		return handlers.Snooze(*cmd.Snooze)
	case TypeDismiss:
		if handlers.Dismiss == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "dismiss handler not configured"}
		}
		return handlers.Dismiss()
	case TypeToggle:
		if handlers.Toggle == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "toggle handler not configured"}
		}
		return handlers.Toggle(*cmd.Row)
	case TypeDelete:
		if handlers.Delete == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "delete handler not configured"}
		}
		return handlers.Delete(*cmd.Row)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}
