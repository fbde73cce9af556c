package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rycus86/localbus/pkg/cache"
	"github.com/rycus86/localbus/pkg/client"
	"github.com/rycus86/localbus/pkg/config"
	"github.com/rycus86/localbus/pkg/timetables"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

var settings *config.Config

func setupLogging(cfg config.LogConfig) {
	if cfg.Format != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if cfg.Debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}
}

func newStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, func(), error) {
	switch cfg.Backend {
	case "redis":
		redisClient, err := cache.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}

		return cache.NewRedisStore(redisClient, cfg.Redis.Expiration), func() { redisClient.Close() }, nil

	case "memory":
		return cache.NewMemoryStore(), func() {}, nil

	default:
		store, err := cache.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}

		return store, func() {}, nil
	}
}

// newService wires the loading chain from the configuration. The returned
// function releases the cache backend.
func newService(ctx context.Context) (*timetables.Service, func(), error) {
	store, closeStore, err := newStore(ctx, settings.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("opening the %s cache: %w", settings.Cache.Backend, err)
	}

	repository := timetables.NewRepository(
		client.NewHttpClient(settings.FetchTimeout),
		settings.RemoteURL,
		store,
		timetables.WithCacheKey(settings.Cache.Key),
	)

	return timetables.NewService(repository,
		timetables.WithRefreshTimeout(max(timetables.DefaultRefreshTimeout, 2*settings.FetchTimeout)),
	), closeStore, nil
}

// loadSnapshot runs the loading chain once for the one-shot commands.
func loadSnapshot(ctx context.Context) (*timetables.Snapshot, error) {
	service, closeStore, err := newService(ctx)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	return service.Refresh(ctx)
}

func main() {
	app := &cli.App{
		Name:  "localbus",
		Usage: "Intercity bus timetable between Jangyu and Sasang",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file",
				EnvVars: []string{"LOCALBUS_CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}

			settings = cfg
			setupLogging(cfg.Log)

			return nil
		},
		Commands: []*cli.Command{
			nextCommand(),
			timetableCommand(),
			watchCommand(),
			widgetCommand(),
			remindCommand(),
			serveCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunContext(ctx, os.Args)
	stop()

	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
