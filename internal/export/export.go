package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/sandeepkv93/vigil/internal/model"
)

type Format string

const (
	FormatICS  Format = "ics"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("export: unknown format")

func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ics", "ical", "icalendar":
		return FormatICS, nil
	case "yaml", "yml", "":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

const (
	productID = "-//vigil//alarms//EN"
	// floatingLayout writes local wall-clock times without a zone.
	floatingLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"
)

// WriteICS encodes enabled alarms as VEVENTs starting at their next fire
// instant. Repeating alarms carry a weekly RRULE and every event carries an
// audio VALARM at its start.
func WriteICS(w io.Writer, alarms []model.Alarm, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")

	cal.Children = make([]*ical.Component, 0, len(alarms))
	for _, a := range alarms {
		if !a.Enabled {
			continue
		}
		cal.Children = append(cal.Children, alarmEvent(a, now))
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode ics: %w", err)
	}
	return nil
}

func alarmEvent(a model.Alarm, now time.Time) *ical.Component {
	start := model.NextFire(a, now)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, a.ID+"@vigil")
	setUTC(event.Component, ical.PropDateTimeStamp, now)
	setFloating(event.Component, ical.PropDateTimeStart, start)
	setFloating(event.Component, ical.PropDateTimeEnd, start.Add(time.Duration(a.SnoozeMinutes)*time.Minute))
	event.Props.SetText(ical.PropSummary, summary(a))
	event.Props.SetText(ical.PropDescription, fmt.Sprintf("tone=%s volume=%d snooze=%dm", a.ToneID, a.Volume, a.SnoozeMinutes))
	if !a.CreatedAt.IsZero() {
		setUTC(event.Component, ical.PropCreated, a.CreatedAt)
	}
	if !a.UpdatedAt.IsZero() {
		setUTC(event.Component, ical.PropLastModified, a.UpdatedAt)
	}

	if !a.OneShot() {
		if rule, err := model.WeeklyRule(a, start); err == nil {
			opts := rule.OrigOptions
			event.Props.SetRecurrenceRule(&rrule.ROption{Freq: opts.Freq, Byweekday: opts.Byweekday, Wkst: opts.Wkst})
		}
	}

	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "AUDIO")
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.SetValueType(ical.ValueDuration)
	trigger.Value = "PT0S"
	alarm.Props.Set(trigger)
	event.Children = append(event.Children, alarm)

	return event.Component
}

func summary(a model.Alarm) string {
	if a.Label != "" {
		return a.Label
	}
	return "Alarm " + a.Time.String()
}

func setFloating(c *ical.Component, name string, t time.Time) {
	prop := ical.NewProp(name)
	prop.SetValueType(ical.ValueDateTime)
	prop.Value = t.Format(floatingLayout)
	c.Props.Set(prop)
}

func setUTC(c *ical.Component, name string, t time.Time) {
	prop := ical.NewProp(name)
	prop.SetValueType(ical.ValueDateTime)
	prop.Value = t.UTC().Format(utcLayout)
	c.Props.Set(prop)
}

// document is the YAML export shape.
type document struct {
	Version    int           `yaml:"version"`
	ExportedAt time.Time     `yaml:"exportedAt"`
	Alarms     []model.Alarm `yaml:"alarms"`
}

const documentVersion = 1

func WriteYAML(w io.Writer, alarms []model.Alarm, now time.Time) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	doc := document{Version: documentVersion, ExportedAt: now.UTC(), Alarms: alarms}
	if doc.Alarms == nil {
		doc.Alarms = []model.Alarm{}
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// ReadYAML decodes an export document. Alarms without an id get a fresh
// one and missing timestamps are stamped with now. Every alarm is
// validated.
func ReadYAML(r io.Reader, now time.Time) ([]model.Alarm, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.Alarm{}, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("decode yaml: unsupported document version %d", doc.Version)
	}

	seen := make(map[string]bool, len(doc.Alarms))
	out := make([]model.Alarm, 0, len(doc.Alarms))
	for i, a := range doc.Alarms {
		if strings.TrimSpace(a.ID) == "" {
			a.ID = uuid.NewString()
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("alarm %d: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
		a.RepeatDays = a.RepeatDays.Normalize()
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("alarm %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}
