package update

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/vigil/internal/commands"
	"github.com/sandeepkv93/vigil/internal/model"
	"github.com/sandeepkv93/vigil/internal/views"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "esc":
		m.Palette.Active = false
		m.Palette.Input = ""
		m.commandInput.SetValue("")
		m.commandInput.Blur()
		m.Status = StatusBar{Text: "command palette closed"}
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		m = m.executePaletteCommand()
	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
			if msg.Type == tea.KeySpace && len(msg.Runes) == 0 {
				m.commandInput.SetValue(m.commandInput.Value() + " ")
			}
			m.Palette.Input = m.commandInput.Value()
			return m
		}
		var cmd tea.Cmd
		m.commandInput, cmd = m.commandInput.Update(msg)
		_ = cmd
		m.Palette.Input = m.commandInput.Value()
	}
	return m
}

func (m Model) executePaletteCommand() Model {
	raw := strings.TrimSpace(m.Palette.Input)
	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		m.closePalette()
		return m
	}

	res, err := commands.Execute(cmd, commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			in := model.NewAlarmInput(a.Label, a.Time)
			in.RepeatDays = a.Days
			created, err := m.store.Create(m.ctx, in)
			if err != nil {
				return commands.Result{}, err
			}
			m.reload()
			return commands.Result{Message: fmt.Sprintf("added alarm %s (%s)", created.Time, created.RepeatDays)}, nil
		},
		Snooze: func(s commands.SnoozeArgs) (commands.Result, error) {
			if err := m.sched.Snooze(m.ctx, s.Minutes); err != nil {
				return commands.Result{}, err
			}
			m.reload()
			return commands.Result{Message: "alarm snoozed"}, nil
		},
		Dismiss: func() (commands.Result, error) {
			if err := m.sched.Dismiss(m.ctx); err != nil {
				return commands.Result{}, err
			}
			m.reload()
			return commands.Result{Message: "alarm dismissed"}, nil
		},
		Toggle: func(r commands.RowArgs) (commands.Result, error) {
			next, err := m.toggleRow(r.Row)
			if err != nil {
				return commands.Result{}, err
			}
			m = next
			return commands.Result{Message: m.Status.Text}, nil
		},
		Delete: func(r commands.RowArgs) (commands.Result, error) {
			next, err := m.deleteRow(r.Row)
			if err != nil {
				return commands.Result{}, err
			}
			m = next
			return commands.Result{Message: m.Status.Text}, nil
		},
	})
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
	} else {
		m.Status = StatusBar{Text: res.Message}
	}
	m.closePalette()
	return m
}

func (m *Model) closePalette() {
	m.Palette.Active = false
	m.Palette.Input = ""
	m.commandInput.SetValue("")
	m.commandInput.Blur()
}

func (m Model) renderCommandPalette() string {
	return views.RenderCommandPalette(m.Palette.Active, m.commandInput.View())
}
