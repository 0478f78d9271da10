package main

import (
	"context"
	"os"

	"github.com/savaki/gamelift-backend/cmd/gamelift-backend/commands"
	"github.com/savaki/gamelift-backend/internal/di"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := commands.NewApp(logger)
	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
