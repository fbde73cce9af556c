package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/rycus86/localbus/pkg/notify"
	"github.com/rycus86/localbus/pkg/server"
	"github.com/rycus86/localbus/pkg/timetables"
	"github.com/sourcegraph/conc"
	"github.com/urfave/cli/v2"
)

func runUpdates(ctx context.Context, service *timetables.Service, interval time.Duration) {
	refresh := func() {
		if _, err := service.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to update the timetable")
		}
	}

	// once at startup
	refresh()

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "listen target for the web server, overrides the configuration",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			listen := settings.Server.Listen
			if c.IsSet("listen") {
				listen = c.String("listen")
			}

			service, closeStore, err := newService(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			var sink notify.Sink = notify.LogSink{}
			if settings.Notify.NATSURL != "" {
				conn, err := notify.ConnectNATS(settings.Notify.NATSURL)
				if err != nil {
					return err
				}
				defer conn.Close()

				sink = notify.NewNATSSink(conn, settings.Notify.Subject)
			}

			reminders := notify.NewReminders(notify.NewTimerScheduler(sink))
			defer reminders.CancelAll()

			srv := server.New(ctx, service, server.WithReminders(reminders, settings.Notify.LeadMinutes))

			httpServer := &http.Server{
				Addr:              listen,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			var serveErr error

			var wg conc.WaitGroup

			wg.Go(func() {
				runUpdates(ctx, service, settings.Server.RefreshInterval)
			})

			wg.Go(func() {
				log.Info().Str("listen", listen).Msg("Starting HTTP server")

				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr = err
					cancel()
				}
			})

			wg.Go(func() {
				<-ctx.Done()

				shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
				defer stop()

				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shut down the HTTP server")
				}
			})

			wg.Wait()

			return serveErr
		},
	}
}
