package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	redis "github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/tasklane/tasklane/pkg/cmd"
	"github.com/tasklane/tasklane/pkg/log"
	"github.com/tasklane/tasklane/pkg/otelhelper"
	"github.com/tasklane/tasklane/pkg/permissions"
)

const defaultPort = 9080

const permissionCacheTTL = 30 * time.Second

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "tasklane-api",
		Usage:                 "Manage workflows, tasks and transitions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus transport (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the permission decision cache (empty disables caching)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "roles-file",
				Usage:   "Path to a JSON roles file (empty grants everything, development only)",
				Sources: cli.EnvVars("ROLES_FILE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "enable-tracing",
				Usage:   "Export transition engine spans over OTLP (endpoint via OTEL_EXPORTER_OTLP_ENDPOINT)",
				Sources: cli.EnvVars("ENABLE_TRACING"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Tasklane API")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "tasklane-api", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			oracle, err := newOracle(ctx, command, logger)
			if err != nil {
				return err
			}

			var tracer trace.Tracer

			if command.Bool("enable-tracing") {
				tracer, err = otelhelper.NewTracer(ctx, "tasklane-api")
				if err != nil {
					return err
				}
			}

			api := NewAPI(
				logger,
				persistence,
				oracle,
				eventBus,
				tracer,
			)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

// newOracle builds the permission oracle: a roles file when given, AllowAll
// otherwise, optionally wrapped in the Redis decision cache.
func newOracle(ctx context.Context, command *cli.Command, logger *slog.Logger) (permissions.Oracle, error) {
	var oracle permissions.Oracle = permissions.AllowAll{}

	if rolesFile := command.String("roles-file"); rolesFile != "" {
		static, err := permissions.LoadStaticFromFile(rolesFile)
		if err != nil {
			return nil, err
		}

		oracle = static
	} else {
		logger.WarnContext(ctx, "No roles file configured, all permissions granted")
	}

	if redisURL := command.String("redis-url"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, err
		}

		oracle = permissions.NewCached(oracle, redis.NewClient(opts), permissionCacheTTL, logger)
	}

	return oracle, nil
}
