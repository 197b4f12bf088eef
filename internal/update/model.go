package update

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/sandeepkv93/vigil/internal/clock"
	"github.com/sandeepkv93/vigil/internal/logging"
	"github.com/sandeepkv93/vigil/internal/model"
	"github.com/sandeepkv93/vigil/internal/scheduler"
)

// AlarmStore is the subset of the alarm store the UI mutates through.
type AlarmStore interface {
	GetAll(ctx context.Context) []model.Alarm
	Create(ctx context.Context, in model.AlarmInput) (model.Alarm, error)
	Update(ctx context.Context, id string, patch model.Patch) error
	Delete(ctx context.Context, id string) error
}

// Scheduler is the subset of the scheduler the UI drives.
type Scheduler interface {
	State() scheduler.State
	Dismiss(ctx context.Context) error
	Snooze(ctx context.Context, minutes int) error
	NextInstants(ctx context.Context) ([]scheduler.Upcoming, error)
	C() <-chan scheduler.Event
}

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Dismiss string
	Snooze  string
	Toggle  string
	Delete  string
	Palette string
	Help    string
	Quit    string
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

const eventLogSize = 8

type Model struct {
	Alarms      []model.Alarm
	Upcoming    map[string]scheduler.Upcoming
	Ringing     scheduler.State
	EventLog    []scheduler.Event
	Palette     CommandPaletteState
	HelpVisible bool
	Status      StatusBar
	Keys        GlobalKeyMap
	Quitting    bool
	LastError   error

	ctx    context.Context
	store  AlarmStore
	sched  Scheduler
	clock  clock.Clock
	logger *slog.Logger

	alarmTable   table.Model
	commandInput textinput.Model
	helpModel    help.Model
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

type SchedulerEventMsg struct {
	Event scheduler.Event
}

// RefreshMsg reloads alarms and scheduler state.
type RefreshMsg struct{}

func NewModel(ctx context.Context, store AlarmStore, sched Scheduler, clk clock.Clock, logger *slog.Logger) Model {
	if clk == nil {
		clk = clock.Real{}
	}
	m := Model{
		Upcoming: make(map[string]scheduler.Upcoming),
		Ringing:  scheduler.State{Kind: scheduler.StateIdle},
		Keys: GlobalKeyMap{
			Dismiss: "d",
			Snooze:  "s",
			Toggle:  " ",
			Delete:  "x",
			Palette: "/",
			Help:    "?",
			Quit:    "q",
		},
		ctx:    ctx,
		store:  store,
		sched:  sched,
		clock:  clk,
		logger: logging.OrDiscard(logger),
	}
	m.initBubbleComponents()
	m.reload()
	return m
}

func (m *Model) initBubbleComponents() {
	cols := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Time", Width: 6},
		{Title: "Days", Width: 14},
		{Title: "Label", Width: 16},
		{Title: "On", Width: 3},
		{Title: "Next", Width: 12},
	}
	m.alarmTable = table.New(table.WithColumns(cols), table.WithRows([]table.Row{}), table.WithFocused(true), table.WithHeight(12))

	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 256
	m.commandInput.Width = 38

	m.helpModel = help.New()
}
