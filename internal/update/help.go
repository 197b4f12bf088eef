package update

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"

	"github.com/sandeepkv93/vigil/internal/views"
)

type KeyBinding struct {
	Key    string
	Action string
}

type helpKeyMap struct {
	short []key.Binding
	full  [][]key.Binding
}

func (k helpKeyMap) ShortHelp() []key.Binding  { return k.short }
func (k helpKeyMap) FullHelp() [][]key.Binding { return k.full }

func (m Model) renderHelpIfVisible() string {
	if !m.HelpVisible {
		return ""
	}
	return m.renderHelpView()
}

func (m Model) renderHelpView() string {
	bindings := m.helpBindings()
	rows := make([]string, 0, len(m.bindings()))
	for _, kb := range m.bindings() {
		rows = append(rows, fmt.Sprintf("| `%s` | %s |", kb.Key, kb.Action))
	}
	return views.RenderHelpPanel(views.HelpPanelData{
		Bindings: rows,
		HelpView: m.helpModel.View(helpKeyMap{
			short: bindings,
			full:  [][]key.Binding{bindings},
		}),
	})
}

func (m Model) bindings() []KeyBinding {
	return []KeyBinding{
		{Key: m.Keys.Dismiss, Action: "dismiss ringing alarm"},
		{Key: m.Keys.Snooze, Action: "snooze ringing alarm"},
		{Key: "space", Action: "enable/disable selected alarm"},
		{Key: m.Keys.Delete, Action: "delete selected alarm"},
		{Key: "j/k", Action: "move selection"},
		{Key: "r", Action: "refresh"},
		{Key: m.Keys.Palette, Action: "command palette: add HH:MM [days] [label], snooze [min], dismiss, toggle n, delete n"},
		{Key: m.Keys.Help, Action: "toggle help panel"},
		{Key: m.Keys.Quit, Action: "quit"},
	}
}

func (m Model) helpBindings() []key.Binding {
	all := m.bindings()
	out := make([]key.Binding, 0, len(all))
	for _, kb := range all {
		out = append(out, key.NewBinding(key.WithKeys(kb.Key), key.WithHelp(kb.Key, kb.Action)))
	}
	return out
}
