package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/rycus86/localbus/pkg/notify"
	"github.com/rycus86/localbus/pkg/schedule"
	"github.com/rycus86/localbus/pkg/server"
	"github.com/rycus86/localbus/pkg/timetables"
	"github.com/rycus86/localbus/pkg/widget"
	"github.com/urfave/cli/v2"
)

func directionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "direction",
		Aliases: []string{"d"},
		Value:   string(timetables.Outbound),
		Usage:   fmt.Sprintf("%s or %s", timetables.Outbound, timetables.Inbound),
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "print JSON instead of text",
	}
}

func boardFor(document *timetables.Document, direction timetables.Direction, scheduleType string, now time.Time) (timetables.Board, error) {
	if scheduleType == "" {
		return timetables.NewBoardForToday(document, direction, now), nil
	}

	parsed, err := schedule.ParseType(scheduleType)
	if err != nil {
		return timetables.Board{}, err
	}

	return timetables.NewBoard(document, direction, parsed, now), nil
}

func printJSON(w io.Writer, value interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func printSource(w io.Writer, snapshot *timetables.Snapshot) {
	if snapshot.Source.Offline() {
		fmt.Fprintf(w, "Offline: showing the %s timetable (updated %s)\n", snapshot.Source, snapshot.Document.Meta.UpdatedAt)
	}
}

func nextCommand() *cli.Command {
	return &cli.Command{
		Name:  "next",
		Usage: "show the next departure",
		Flags: []cli.Flag{
			directionFlag(),
			&cli.StringFlag{
				Name:  "type",
				Usage: "weekday or weekend, defaults to today's calendar",
			},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			direction, err := timetables.ParseDirection(c.String("direction"))
			if err != nil {
				return err
			}

			snapshot, err := loadSnapshot(c.Context)
			if err != nil {
				return err
			}

			board, err := boardFor(snapshot.Document, direction, c.String("type"), time.Now())
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, board)
			}

			printSource(c.App.Writer, snapshot)
			fmt.Fprint(c.App.Writer, server.BoardText(board))

			return nil
		},
	}
}

func timetableCommand() *cli.Command {
	return &cli.Command{
		Name:  "timetable",
		Usage: "print the departure times of both directions",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "dump the whole document",
			},
		},
		Action: func(c *cli.Context) error {
			snapshot, err := loadSnapshot(c.Context)
			if err != nil {
				return err
			}

			document := snapshot.Document

			if c.Bool("raw") {
				pretty.Fprintf(c.App.Writer, "%# v\n", document)
				return nil
			}

			fmt.Fprintf(c.App.Writer, "Timetable v%d, updated %s (%s)\n", document.Meta.Version, document.Meta.UpdatedAt, snapshot.Source)
			if document.HasNotice() {
				fmt.Fprintf(c.App.Writer, "! %s\n", document.Notice())
			}

			for _, direction := range timetables.Directions {
				fmt.Fprintf(c.App.Writer, "\n%s\n", direction.Label())
				for _, scheduleType := range []schedule.Type{schedule.Weekday, schedule.Weekend} {
					fmt.Fprintf(c.App.Writer, "  %-8s %s\n", scheduleType, strings.Join(document.Times(direction, scheduleType), " "))
				}
			}

			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "keep the departure board on screen with a live countdown",
		Flags: []cli.Flag{directionFlag()},
		Action: func(c *cli.Context) error {
			direction, err := timetables.ParseDirection(c.String("direction"))
			if err != nil {
				return err
			}

			service, closeStore, err := newService(c.Context)
			if err != nil {
				return err
			}
			defer closeStore()

			if _, err := service.Refresh(c.Context); err != nil {
				return err
			}

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()

			var refreshes <-chan time.Time
			if settings.Server.RefreshInterval > 0 {
				refreshTicker := time.NewTicker(settings.Server.RefreshInterval)
				defer refreshTicker.Stop()
				refreshes = refreshTicker.C
			}

			for {
				snapshot := service.Current()

				fmt.Fprint(c.App.Writer, "\033[H\033[2J")
				printSource(c.App.Writer, snapshot)
				fmt.Fprint(c.App.Writer, server.BoardText(timetables.NewBoardForToday(snapshot.Document, direction, time.Now())))

				select {
				case <-c.Context.Done():
					return nil
				case <-ticker.C:
				case <-refreshes:
					go func() {
						if _, err := service.Refresh(c.Context); err != nil {
							log.Warn().Err(err).Msg("Failed to refresh the timetable")
						}
					}()
				}
			}
		},
	}
}

func widgetCommand() *cli.Command {
	return &cli.Command{
		Name:  "widget",
		Usage: "print the home screen widget timeline",
		Flags: []cli.Flag{directionFlag(), jsonFlag()},
		Action: func(c *cli.Context) error {
			direction, err := timetables.ParseDirection(c.String("direction"))
			if err != nil {
				return err
			}

			var document *timetables.Document
			if snapshot, err := loadSnapshot(c.Context); err == nil {
				document = snapshot.Document
			} else {
				log.Warn().Err(err).Msg("Using the default departure times")
			}

			timeline := widget.Build(document, direction, time.Now())

			if c.Bool("json") {
				return printJSON(c.App.Writer, timeline)
			}

			for _, entry := range timeline.Entries {
				at := entry.Date.In(schedule.Location).Format("15:04")
				if entry.ServiceEnded {
					fmt.Fprintf(c.App.Writer, "%s  %s  service ended\n", at, entry.Direction)
				} else {
					fmt.Fprintf(c.App.Writer, "%s  %s  %s in %d min\n", at, entry.Direction, entry.NextBusTime, entry.RemainingMinutes)
				}
			}
			fmt.Fprintf(c.App.Writer, "Next refresh at %s\n", timeline.NextRefresh.In(schedule.Location).Format("15:04"))

			return nil
		},
	}
}

// signallingSink reports the first delivery on done.
type signallingSink struct {
	notify.Sink
	done chan struct{}
}

func (s signallingSink) Deliver(ctx context.Context, reminder notify.Reminder) error {
	defer close(s.done)
	return s.Sink.Deliver(ctx, reminder)
}

func remindCommand() *cli.Command {
	return &cli.Command{
		Name:      "remind",
		Usage:     "wait and send a reminder before a departure",
		ArgsUsage: "HH:mm",
		Flags: []cli.Flag{
			directionFlag(),
			&cli.IntFlag{
				Name:  "lead",
				Usage: "minutes before the departure, defaults to the configured lead time",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one departure time, got %d arguments", c.NArg())
			}

			direction, err := timetables.ParseDirection(c.String("direction"))
			if err != nil {
				return err
			}

			lead := settings.Notify.LeadMinutes
			if c.IsSet("lead") {
				lead = c.Int("lead")
			}

			var sink notify.Sink = notify.LogSink{}
			if settings.Notify.NATSURL != "" {
				conn, err := notify.ConnectNATS(settings.Notify.NATSURL)
				if err != nil {
					return fmt.Errorf("connecting to NATS: %w", err)
				}
				defer conn.Close()

				sink = notify.NewNATSSink(conn, settings.Notify.Subject)
			}

			delivered := make(chan struct{})
			reminders := notify.NewReminders(notify.NewTimerScheduler(signallingSink{Sink: sink, done: delivered}))

			reminder, err := reminders.Schedule(c.Context, c.Args().First(), lead, direction.Label(), time.Now())
			if err != nil {
				return err
			}

			log.Info().Str("key", reminder.Key).Time("fire_at", reminder.FireAt).Msg("Waiting for the reminder")

			select {
			case <-c.Context.Done():
				reminders.CancelAll()
			case <-delivered:
			}

			return nil
		},
	}
}
