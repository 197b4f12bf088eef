package update

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"github.com/sandeepkv93/vigil/internal/logging"
	"github.com/sandeepkv93/vigil/internal/model"
	"github.com/sandeepkv93/vigil/internal/scheduler"
	"github.com/sandeepkv93/vigil/internal/views"
)

// reload re-reads alarms, armed instants and the ringing state.
func (m *Model) reload() {
	if m.store != nil {
		m.Alarms = m.store.GetAll(m.ctx)
	}
	m.Upcoming = make(map[string]scheduler.Upcoming)
	if m.sched != nil {
		m.Ringing = m.sched.State()
		upcoming, err := m.sched.NextInstants(m.ctx)
		if err != nil {
			m.logger.Warn("load upcoming instants failed", logging.Err(err))
		}
		for _, u := range upcoming {
			m.Upcoming[u.Alarm.ID] = u
		}
	}
	m.syncTable()
}

func (m *Model) syncTable() {
	rows := make([]table.Row, 0, len(m.Alarms))
	for i, a := range m.Alarms {
		on := "-"
		if a.Enabled {
			on = "on"
		}
		rows = append(rows, table.Row{
			strconv.Itoa(i + 1),
			a.Time.String(),
			a.RepeatDays.String(),
			a.Label,
			on,
			m.nextLabel(a),
		})
	}
	m.alarmTable.SetRows(rows)
	if cursor := m.alarmTable.Cursor(); cursor >= len(rows) && len(rows) > 0 {
		m.alarmTable.SetCursor(len(rows) - 1)
	}
}

// nextFor prefers the armed instant, which may be a snooze, and falls back
// to the computed next fire time.
func (m Model) nextFor(a model.Alarm) (scheduler.Upcoming, bool) {
	if !a.Enabled {
		return scheduler.Upcoming{}, false
	}
	if u, ok := m.Upcoming[a.ID]; ok {
		return u, true
	}
	return scheduler.Upcoming{Alarm: a, At: model.NextFire(a, m.clock.Now()), Kind: model.ArmScheduled}, true
}

func (m Model) nextLabel(a model.Alarm) string {
	u, ok := m.nextFor(a)
	if !ok {
		return ""
	}
	now := m.clock.Now()
	switch {
	case model.SameDay(u.At, now):
		return u.At.Format("15:04")
	case u.At.Sub(now) < 7*24*time.Hour:
		return u.At.Format("Mon 15:04")
	default:
		return u.At.Format("Jan 2 15:04")
	}
}

func (m Model) selected() (model.Alarm, int, bool) {
	return m.alarmAtRow(m.alarmTable.Cursor() + 1)
}

func (m Model) alarmAtRow(row int) (model.Alarm, int, bool) {
	if row < 1 || row > len(m.Alarms) {
		return model.Alarm{}, 0, false
	}
	return m.Alarms[row-1], row, true
}

func (m Model) dismiss() Model {
	if err := m.sched.Dismiss(m.ctx); err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m
	}
	m.reload()
	m.Status = StatusBar{Text: "alarm dismissed"}
	return m
}

func (m Model) snooze(minutes int) Model {
	if err := m.sched.Snooze(m.ctx, minutes); err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m
	}
	m.reload()
	m.Status = StatusBar{Text: "alarm snoozed"}
	return m
}

func (m Model) toggleRow(row int) (Model, error) {
	a, _, ok := m.alarmAtRow(row)
	if !ok {
		return m, fmt.Errorf("no alarm at row %d", row)
	}
	if err := m.store.Update(m.ctx, a.ID, model.Patch{Enabled: model.Ref(!a.Enabled)}); err != nil {
		return m, err
	}
	m.reload()
	state := "disabled"
	if !a.Enabled {
		state = "enabled"
	}
	m.Status = StatusBar{Text: fmt.Sprintf("%s alarm %s", state, a.Time)}
	return m, nil
}

func (m Model) deleteRow(row int) (Model, error) {
	a, _, ok := m.alarmAtRow(row)
	if !ok {
		return m, fmt.Errorf("no alarm at row %d", row)
	}
	if err := m.store.Delete(m.ctx, a.ID); err != nil {
		return m, err
	}
	m.reload()
	m.Status = StatusBar{Text: fmt.Sprintf("deleted alarm %s", a.Time)}
	return m, nil
}

func (m Model) renderAlarmPanel() string {
	enabled := 0
	for _, a := range m.Alarms {
		if a.Enabled {
			enabled++
		}
	}
	return views.RenderAlarmPanel(views.AlarmPanelData{
		TableView: m.alarmTable.View(),
		Count:     len(m.Alarms),
		Enabled:   enabled,
	})
}

func (m Model) renderDetail() string {
	a, row, ok := m.selected()
	if !ok {
		return views.RenderAlarmDetail(views.AlarmDetailData{})
	}
	data := views.AlarmDetailData{
		Row:     row,
		ID:      a.ID,
		Label:   a.Label,
		Time:    a.Time.String(),
		Days:    a.RepeatDays.String(),
		Enabled: a.Enabled,
		Tone:    a.ToneID,
		Volume:  a.Volume,
		Snooze:  a.SnoozeMinutes,
		FadeIn:  a.FadeInSeconds,
		Vibrate: a.Vibrate,
	}
	if u, ok := m.nextFor(a); ok {
		data.Next = u.At.Format("Mon Jan 2 15:04")
		data.NextKind = string(u.Kind)
	}
	return views.RenderAlarmDetail(data)
}

func (m Model) renderBanner() string {
	if m.Ringing.Kind != scheduler.StateRinging {
		return ""
	}
	return views.RenderRingingBanner(views.RingingData{
		Label: m.Ringing.Label,
		Time:  m.Ringing.At.Format("15:04"),
		Since: m.Ringing.Since.Format("15:04:05"),
	})
}

func (m Model) renderEventLog() string {
	lines := make([]views.EventLine, 0, len(m.EventLog))
	for _, ev := range m.EventLog {
		line := views.EventLine{At: ev.At.Format("15:04:05"), Kind: string(ev.Kind), Label: ev.Label}
		if ev.Err != nil {
			line.Detail = "error: " + ev.Err.Error()
		}
		lines = append(lines, line)
	}
	return views.RenderEventLog(lines)
}
