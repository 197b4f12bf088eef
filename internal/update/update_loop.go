package update

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/vigil/internal/scheduler"
	"github.com/sandeepkv93/vigil/internal/views"
)

func (m Model) Init() tea.Cmd {
	if m.sched != nil {
		return waitForEventCmd(m.sched.C())
	}
	return nil
}

func waitForEventCmd(ch <-chan scheduler.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return SchedulerEventMsg{Event: ev}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if m.Palette.Active {
			return m.handlePaletteKey(typed), nil
		}

		switch keyStr := typed.String(); keyStr {
		case m.Keys.Palette:
			m.Palette.Active = true
			m.Palette.Input = ""
			m.commandInput.Focus()
			m.commandInput.SetValue("")
			m.Status = StatusBar{Text: "command palette active"}
			return m, nil
		case m.Keys.Help:
			m.HelpVisible = !m.HelpVisible
			if m.HelpVisible {
				m.Status = StatusBar{Text: "help shown"}
			} else {
				m.Status = StatusBar{Text: "help hidden"}
			}
			return m, nil
		case m.Keys.Dismiss:
			return m.dismiss(), nil
		case m.Keys.Snooze:
			return m.snooze(0), nil
		case m.Keys.Toggle, "space":
			_, row, ok := m.selected()
			if !ok {
				return m, nil
			}
			next, err := m.toggleRow(row)
			if err != nil {
				next.Status = StatusBar{Text: err.Error(), IsError: true}
			}
			return next, nil
		case m.Keys.Delete:
			_, row, ok := m.selected()
			if !ok {
				return m, nil
			}
			next, err := m.deleteRow(row)
			if err != nil {
				next.Status = StatusBar{Text: err.Error(), IsError: true}
			}
			return next, nil
		case "r":
			m.reload()
			m.Status = StatusBar{Text: "refreshed"}
			return m, nil
		case "ctrl+c", m.Keys.Quit:
			m.Quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.alarmTable, cmd = m.alarmTable.Update(typed)
		return m, cmd
	case SchedulerEventMsg:
		m = m.applyEvent(typed.Event)
		if m.sched != nil {
			return m, waitForEventCmd(m.sched.C())
		}
		return m, nil
	case RefreshMsg:
		m.reload()
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	}
	return m, nil
}

func (m Model) applyEvent(ev scheduler.Event) Model {
	m.EventLog = append(m.EventLog, ev)
	if len(m.EventLog) > eventLogSize {
		m.EventLog = m.EventLog[len(m.EventLog)-eventLogSize:]
	}
	m.reload()

	label := ev.Label
	if label == "" {
		label = ev.AlarmID
	}
	switch ev.Kind {
	case scheduler.EventRinging:
		if ev.Err != nil {
			m.Status = StatusBar{Text: fmt.Sprintf("%s ringing without sound: %v", label, ev.Err), IsError: true}
		} else {
			m.Status = StatusBar{Text: fmt.Sprintf("%s ringing", label)}
		}
	case scheduler.EventMissed:
		m.Status = StatusBar{Text: fmt.Sprintf("missed %s at %s", label, ev.At.Format("Mon 15:04")), IsError: true}
	case scheduler.EventSilenced:
		m.Status = StatusBar{Text: fmt.Sprintf("%s silenced", label)}
	case scheduler.EventFocus:
		m.Status = StatusBar{Text: "opened from notification"}
	}
	return m
}

func (m Model) View() string {
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}
	state := string(m.Ringing.Kind)
	if state == "" {
		state = string(scheduler.StateIdle)
	}

	return views.RenderApp(views.AppData{
		Header:     fmt.Sprintf("vigil | %s | %s", m.clock.Now().Format("Mon Jan 2 15:04"), state),
		Banner:     m.renderBanner(),
		LeftPane:   m.renderAlarmPanel(),
		RightPane:  m.renderDetail() + m.renderCommandPalette() + m.renderHelpIfVisible(),
		StatusLine: status,
		EventLog:   m.renderEventLog(),
		Footer:     fmt.Sprintf("keys: %s dismiss | %s snooze | space toggle | %s delete | %s cmd | %s help | %s quit", m.Keys.Dismiss, m.Keys.Snooze, m.Keys.Delete, m.Keys.Palette, m.Keys.Help, m.Keys.Quit),
	})
}
