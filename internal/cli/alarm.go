package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/vigil/internal/model"
	"github.com/sandeepkv93/vigil/internal/store"
)

var ErrAmbiguousAlarm = errors.New("cli: alarm reference matches more than one alarm")

// alarmFlags are the editable alarm fields shared by add and update.
type alarmFlags struct {
	label   string
	at      string
	days    string
	tone    string
	volume  int
	snooze  int
	fade    int
	vibrate bool
}

func (f *alarmFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.label, "label", "l", "", "alarm label")
	cmd.Flags().StringVarP(&f.at, "time", "t", "", "time of day (HH:MM)")
	cmd.Flags().StringVarP(&f.days, "days", "d", "", "repeat days (mon,wed,fri | weekdays | weekends | daily | once)")
	cmd.Flags().StringVar(&f.tone, "tone", model.DefaultToneID, "tone id")
	cmd.Flags().IntVar(&f.volume, "volume", model.DefaultVolume, "volume 0-100")
	cmd.Flags().IntVar(&f.snooze, "snooze", model.DefaultSnoozeMinutes, "snooze length in minutes")
	cmd.Flags().IntVar(&f.fade, "fade", 0, "fade-in seconds")
	cmd.Flags().BoolVar(&f.vibrate, "vibrate", false, "pulse haptics while ringing")
}

// NewAlarmCommand groups the alarm management subcommands.
func NewAlarmCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alarm",
		Short: "Manage alarms",
	}
	cmd.AddCommand(newAlarmAddCommand(rootOpts))
	cmd.AddCommand(newAlarmListCommand(rootOpts))
	cmd.AddCommand(newAlarmUpdateCommand(rootOpts))
	cmd.AddCommand(newAlarmDeleteCommand(rootOpts))
	cmd.AddCommand(newAlarmEnableCommand(rootOpts, true))
	cmd.AddCommand(newAlarmEnableCommand(rootOpts, false))
	cmd.AddCommand(newAlarmNextCommand(rootOpts))
	return cmd
}

func newAlarmAddCommand(rootOpts *RootOptions) *cobra.Command {
	f := &alarmFlags{}
	cmd := &cobra.Command{
		Use:   "add HH:MM",
		Short: "Add an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := model.ParseClockTime(args[0])
			if err != nil {
				return err
			}
			days, err := model.ParseWeekdays(f.days)
			if err != nil {
				return err
			}
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			if !e.tones.Exists(cmd.Context(), f.tone) {
				return fmt.Errorf("unknown tone %q", f.tone)
			}
			in := model.NewAlarmInput(f.label, at)
			in.RepeatDays = days
			in.ToneID = f.tone
			in.Volume = f.volume
			in.SnoozeMinutes = f.snooze
			in.FadeInSeconds = f.fade
			in.Vibrate = f.vibrate
			a, err := e.store.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s %s\n", a.ID, a.Time, a.RepeatDays)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newAlarmListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List alarms with their next fire time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()
			writeAlarmTable(cmd.OutOrStdout(), e.store.GetAll(cmd.Context()), e)
			return nil
		},
	}
}

func writeAlarmTable(out io.Writer, alarms []model.Alarm, e *env) {
	if len(alarms) == 0 {
		fmt.Fprintln(out, "no alarms")
		return
	}
	on := color.New(color.FgGreen).SprintFunc()
	off := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	now := e.clock.Now()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tDAYS\tLABEL\tSTATE\tNEXT")
	for _, a := range alarms {
		state, next := off("off"), dim("-")
		if a.Enabled {
			state = on("on")
			next = model.NextFire(a, now).Format("Mon Jan 2 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Time, a.RepeatDays, a.Label, state, next)
	}
	_ = tw.Flush()
}

func newAlarmUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	f := &alarmFlags{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := f.patch(cmd)
			if err != nil {
				return err
			}
			if patch.IsEmpty() {
				return errors.New("nothing to update")
			}
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			a, err := resolveAlarm(cmd, e.store, args[0])
			if err != nil {
				return err
			}
			if patch.ToneID != nil && !e.tones.Exists(cmd.Context(), *patch.ToneID) {
				return fmt.Errorf("unknown tone %q", *patch.ToneID)
			}
			if err := e.store.Update(cmd.Context(), a.ID, patch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", a.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

// patch includes only the flags set on the command line.
func (f *alarmFlags) patch(cmd *cobra.Command) (model.Patch, error) {
	var p model.Patch
	flags := cmd.Flags()
	if flags.Changed("label") {
		p.Label = model.Ref(f.label)
	}
	if flags.Changed("time") {
		at, err := model.ParseClockTime(f.at)
		if err != nil {
			return p, err
		}
		p.Time = &at
	}
	if flags.Changed("days") {
		days, err := model.ParseWeekdays(f.days)
		if err != nil {
			return p, err
		}
		p.RepeatDays = &days
	}
	if flags.Changed("tone") {
		p.ToneID = model.Ref(f.tone)
	}
	if flags.Changed("volume") {
		p.Volume = model.Ref(f.volume)
	}
	if flags.Changed("snooze") {
		p.SnoozeMinutes = model.Ref(f.snooze)
	}
	if flags.Changed("fade") {
		p.FadeInSeconds = model.Ref(f.fade)
	}
	if flags.Changed("vibrate") {
		p.Vibrate = model.Ref(f.vibrate)
	}
	return p, nil
}

func newAlarmDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an alarm",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			a, err := resolveAlarm(cmd, e.store, args[0])
			if err != nil {
				return err
			}
			if err := e.store.Delete(cmd.Context(), a.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", a.ID)
			return nil
		},
	}
}

func newAlarmEnableCommand(rootOpts *RootOptions, enable bool) *cobra.Command {
	use, verb := "disable", "disabled"
	if enable {
		use, verb = "enable", "enabled"
	}
	return &cobra.Command{
		Use:   use + " <id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			a, err := resolveAlarm(cmd, e.store, args[0])
			if err != nil {
				return err
			}
			if err := e.store.Update(cmd.Context(), a.ID, model.Patch{Enabled: model.Ref(enable)}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, a.ID)
			return nil
		},
	}
}

func newAlarmNextCommand(rootOpts *RootOptions) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "next <id>",
		Short: "Preview the next fire times of an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			a, err := resolveAlarm(cmd, e.store, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !a.Enabled {
				fmt.Fprintf(out, "%s is disabled\n", a.ID)
				return nil
			}
			for _, at := range model.Upcoming(a, e.clock.Now(), count) {
				fmt.Fprintln(out, at.Format("Mon 2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of instants")
	return cmd
}

// resolveAlarm accepts a full id or a unique id prefix.
func resolveAlarm(cmd *cobra.Command, st *store.AlarmStore, ref string) (model.Alarm, error) {
	ref = strings.TrimSpace(ref)
	if a, ok := st.Get(cmd.Context(), ref); ok {
		return a, nil
	}
	var match []model.Alarm
	for _, a := range st.GetAll(cmd.Context()) {
		if ref != "" && strings.HasPrefix(a.ID, ref) {
			match = append(match, a)
		}
	}
	switch len(match) {
	case 0:
		return model.Alarm{}, fmt.Errorf("no alarm %q", ref)
	case 1:
		return match[0], nil
	default:
		return model.Alarm{}, fmt.Errorf("%w: %q", ErrAmbiguousAlarm, ref)
	}
}
