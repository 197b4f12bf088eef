package commands

import (
	"errors"
	"testing"
)

func TestParseSupportedCommands(t *testing.T) {
	cases := []struct {
		in       string
		typeWant Type
	}{
		{"/add 05:30 mon,wed,fri Fajr", TypeAdd},
		{"snooze 10", TypeSnooze},
		{"snooze", TypeSnooze},
		{"dismiss", TypeDismiss},
		{"toggle 2", TypeToggle},
		{"/delete 1", TypeDelete},
	}

	for _, tc := range cases {
		cmd, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("parse %q failed: %v", tc.in, err)
		}
		if cmd.Type != tc.typeWant {
			t.Fatalf("parse %q type = %s, want %s", tc.in, cmd.Type, tc.typeWant)
		}
	}
}

func TestParseAddDaysAndLabel(t *testing.T) {
	cmd, err := Parse("add 5:30 weekdays Fajr prayer")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cmd.Add.Time.String() != "05:30" || cmd.Add.Days.String() != "weekdays" || cmd.Add.Label != "Fajr prayer" {
		t.Fatalf("unexpected add args: %+v", cmd.Add)
	}

	cmd, err = Parse("add 21:00 Isha")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(cmd.Add.Days) != 0 || cmd.Add.Label != "Isha" {
		t.Fatalf("expected one-shot with label, got %+v", cmd.Add)
	}
}

func TestParseInvalidArguments(t *testing.T) {
	for _, in := range []string{"add", "add 25:00", "snooze soon", "snooze -3", "toggle", "delete x", "delete 0"} {
		_, err := Parse(in)
		var ce *CommandError
		if !errors.As(err, &ce) || ce.Code != ErrCodeInvalidArgument {
			t.Fatalf("parse %q: expected invalid argument, got %v", in, err)
		}
	}
}

func TestParseUnknownCommand(t *testing.T) {
	_, err := Parse("/unknown do x")
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Code != ErrCodeUnknownCommand {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if _, err := Parse("  / "); !errors.As(err, &ce) || ce.Code != ErrCodeEmptyInput {
		t.Fatalf("expected empty input error, got %v", err)
	}
}

func TestExecuteDispatch(t *testing.T) {
	cmd, err := Parse("/snooze 7m")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	called := false
	res, err := Execute(cmd, Handlers{
		Snooze: func(a SnoozeArgs) (Result, error) {
			called = true
			if a.Minutes != 7 {
				t.Fatalf("unexpected minutes: %d", a.Minutes)
			}
			return Result{Message: "ok"}, nil
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !called || res.Message != "ok" {
		t.Fatalf("dispatch failed, called=%v res=%+v", called, res)
	}
}

func TestExecuteMissingHandler(t *testing.T) {
	cmd, err := Parse("toggle 3")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	_, err = Execute(cmd, Handlers{})
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Code != ErrCodeHandlerMissing {
		t.Fatalf("expected missing handler error, got %v", err)
	}
}
