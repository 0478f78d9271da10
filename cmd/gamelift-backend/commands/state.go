package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/config"
	"github.com/savaki/gamelift-backend/internal/dao/resourcedao"
	"github.com/savaki/gamelift-backend/internal/di"
	"github.com/urfave/cli/v2"
)

// StateCommand returns the state command
func StateCommand(opts ...di.Option) *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Manage the resource state backend",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Create the state directory or DynamoDB table",
				Description: `Examples:
  # Keep state in DynamoDB
  gamelift-backend --state-backend dynamodb state init`,
				Action: func(c *cli.Context) error {
					logger := zerolog.Ctx(c.Context)

					container, err := newContainer(c, opts)
					if err != nil {
						return err
					}
					cfg, err := di.Get[config.Config](container)
					if err != nil {
						return err
					}

					switch cfg.State.Backend {
					case config.BackendDynamoDB:
						dao, err := di.Get[*resourcedao.DAO](container)
						if err != nil {
							return err
						}
						if err := dao.CreateTableIfNotExists(c.Context); err != nil {
							return err
						}
						logger.Info().Str("table", cfg.State.Table).Msg("state table ready")

					default:
						if err := os.MkdirAll(cfg.State.Dir, 0o755); err != nil {
							return fmt.Errorf("failed to create state directory: %w", err)
						}
						logger.Info().Str("dir", cfg.State.Dir).Msg("state directory ready")
					}
					return nil
				},
			},
		},
	}
}
