package platform

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/emersion/go-autostart"

	"github.com/sandeepkv93/vigil/internal/logging"
)

// Launcher is the part of an autostart entry vigil drives.
type Launcher interface {
	IsEnabled() bool
	Enable() error
	Disable() error
}

// Autostart registers the notification relay to start at login, so due
// alarms still surface while the interactive app is closed.
type Autostart struct {
	app    Launcher
	logger *slog.Logger
}

// RelayCommand is the command line the login entry runs.
func RelayCommand(executable string, configPath string) []string {
	exec := []string{executable, "relay"}
	if configPath != "" {
		exec = append(exec, "--config", configPath)
	}
	return exec
}

// NewAutostart builds the login entry for the running binary.
func NewAutostart(configPath string, logger *slog.Logger) (*Autostart, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, fmt.Errorf("resolve executable symlinks: %w", err)
	}
	if configPath != "" {
		if configPath, err = filepath.Abs(configPath); err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
	}
	app := &autostart.App{
		Name:        "vigil-relay",
		DisplayName: "vigil alarm relay",
		Exec:        RelayCommand(execPath, configPath),
	}
	return NewAutostartWith(app, logger), nil
}

func NewAutostartWith(app Launcher, logger *slog.Logger) *Autostart {
	return &Autostart{app: app, logger: logging.OrDiscard(logger)}
}

func (a *Autostart) IsEnabled() bool {
	return a.app.IsEnabled()
}

// Enable is a no-op when the entry already exists.
func (a *Autostart) Enable() error {
	if a.app.IsEnabled() {
		return nil
	}
	if err := a.app.Enable(); err != nil {
		a.logger.Error("failed to enable autostart", logging.Err(err))
		return fmt.Errorf("enable autostart: %w", err)
	}
	a.logger.Info("autostart enabled")
	return nil
}

func (a *Autostart) Disable() error {
	if !a.app.IsEnabled() {
		return nil
	}
	if err := a.app.Disable(); err != nil {
		a.logger.Error("failed to disable autostart", logging.Err(err))
		return fmt.Errorf("disable autostart: %w", err)
	}
	a.logger.Info("autostart disabled")
	return nil
}
