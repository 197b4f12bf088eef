package views

import (
	"fmt"
	"strings"
)

type AlarmPanelData struct {
	TableView string
	Count     int
	Enabled   int
}

type RingingData struct {
	Label string
	Time  string
	Since string
}

type AlarmDetailData struct {
	Row      int
	ID       string
	Label    string
	Time     string
	Days     string
	Enabled  bool
	Tone     string
	Volume   int
	Snooze   int
	FadeIn   int
	Vibrate  bool
	Next     string
	NextKind string
}

type HelpPanelData struct {
	Bindings []string
	HelpView string
}

type EventLine struct {
	At     string
	Kind   string
	Label  string
	Detail string
}

func RenderAlarmPanel(data AlarmPanelData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("alarms: %d (%d enabled)\n", data.Count, data.Enabled))
	if data.Count == 0 {
		b.WriteString("(no alarms) press / then: add 05:30 weekdays Fajr\n")
	}
	b.WriteString(data.TableView)
	return strings.TrimSpace(b.String())
}

func RenderRingingBanner(data RingingData) string {
	label := data.Label
	if label == "" {
		label = "alarm"
	}
	return fmt.Sprintf("RINGING %s %s (since %s) | [d] dismiss [s] snooze", data.Time, label, data.Since)
}

func RenderAlarmDetail(data AlarmDetailData) string {
	if data.ID == "" {
		return "details:\n(no selection)"
	}
	state := "off"
	if data.Enabled {
		state = "on"
	}
	vibrate := "no"
	if data.Vibrate {
		vibrate = "yes"
	}
	var b strings.Builder
	b.WriteString("details:\n")
	b.WriteString(fmt.Sprintf("row: %d\nid: %s\n", data.Row, data.ID))
	b.WriteString(fmt.Sprintf("label: %s\ntime: %s\ndays: %s\nstate: %s\n", data.Label, data.Time, data.Days, state))
	b.WriteString(fmt.Sprintf("tone: %s @ %d%%\nsnooze: %dm\nfade-in: %ds\nvibrate: %s\n", data.Tone, data.Volume, data.Snooze, data.FadeIn, vibrate))
	if data.Next != "" {
		b.WriteString(fmt.Sprintf("next: %s", data.Next))
		if data.NextKind != "" && data.NextKind != "scheduled" {
			b.WriteString(fmt.Sprintf(" (%s)", data.NextKind))
		}
	}
	return strings.TrimSpace(b.String())
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("\ncommand: %s", input)
}

func RenderHelpPanel(data HelpPanelData) string {
	md := "| key | action |\n|---|---|\n" + strings.Join(data.Bindings, "\n")
	return fmt.Sprintf("\nhelp:\n%s\n%s", RenderMarkdown(md), data.HelpView)
}

func RenderEventLog(lines []EventLine) string {
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("events:\n")
	for _, l := range lines {
		b.WriteString(fmt.Sprintf("%s %-9s %s", l.At, l.Kind, l.Label))
		if l.Detail != "" {
			b.WriteString(" " + l.Detail)
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
