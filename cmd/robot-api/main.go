// Package main provides the robot API server: order intake over HTTP.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dorumake/robot/pkg/cmd"
	"github.com/dorumake/robot/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "robot-api",
		EnableShellCompletion: true,
		Usage:                 "Serve the order intake and inspection API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP listen port",
				Value:   3000,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Storage URL: file://<dir> or redis://<host>",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "upload-dir",
				Usage:   "Directory for uploaded order workbooks",
				Value:   "./uploads",
				Sources: cli.EnvVars("UPLOAD_DIR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("robot-api")

			store, err := cmd.NewPersistence(command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			bus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			uploadDir := command.String("upload-dir")
			if err := os.MkdirAll(uploadDir, 0o755); err != nil {
				return err
			}

			api := NewAPI(logger, store, cmd.NewRegistry(), bus, uploadDir)

			logger.InfoContext(ctx, "Starting robot API", "port", command.Int("port"))

			return api.Start(command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
