package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/sandeepkv93/vigil/internal/model"
)

// ErrPermissionDenied means the platform refuses or cannot show
// notifications.
var ErrPermissionDenied = errors.New("relay: notification permission denied")

type Notification struct {
	AlarmID string
	Key     model.TriggerKey
	Title   string
	Body    string
	At      time.Time
}

// Interaction is a user response to a notification.
type Interaction struct {
	AlarmID string
	Key     model.TriggerKey
	Action  string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	// Interactions may return nil when the notifier cannot report clicks.
	Interactions() <-chan Interaction
}

type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Notification) error { return nil }

func (NoopNotifier) Interactions() <-chan Interaction { return nil }

// ExecNotifier shells out to notify-send on Linux and osascript on macOS.
// On Linux a clicked "open" action is reported as an Interaction.
type ExecNotifier struct {
	lookPath     func(string) (string, error)
	command      func(ctx context.Context, name string, args ...string) *exec.Cmd
	interactions chan Interaction
}

func NewExecNotifier() *ExecNotifier {
	return &ExecNotifier{
		lookPath:     exec.LookPath,
		command:      exec.CommandContext,
		interactions: make(chan Interaction, 8),
	}
}

func (e *ExecNotifier) Interactions() <-chan Interaction {
	return e.interactions
}

func (e *ExecNotifier) Notify(ctx context.Context, n Notification) error {
	switch runtime.GOOS {
	case "linux":
		return e.notifySend(ctx, n)
	case "darwin":
		if _, err := e.lookPath("osascript"); err != nil {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(n.Body), escapeAppleScript(n.Title))
		if err := e.command(ctx, "osascript", "-e", script).Run(); err != nil {
			return fmt.Errorf("osascript: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported platform %s", ErrPermissionDenied, runtime.GOOS)
	}
}

// notifySend blocks in the background until the notification closes, then
// reports the chosen action.
func (e *ExecNotifier) notifySend(ctx context.Context, n Notification) error {
	if _, err := e.lookPath("notify-send"); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	cmd := e.command(ctx, "notify-send", "--app-name=vigil", "--urgency=critical", "--action=open=Open", n.Title, n.Body)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			return
		}
		action := strings.TrimSpace(out.String())
		if action == "" {
			return
		}
		select {
		case e.interactions <- Interaction{AlarmID: n.AlarmID, Key: n.Key, Action: action}:
		default:
		}
	}()
	return nil
}

func escapeAppleScript(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}
