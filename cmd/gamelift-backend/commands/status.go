package commands

import (
	"github.com/savaki/gamelift-backend/internal/di"
	"github.com/urfave/cli/v2"
)

// StatusCommand returns the status command
func StatusCommand(opts ...di.Option) *cli.Command {
	return &cli.Command{
		Name:    "status",
		Aliases: []string{"st"},
		Usage:   "Show the recorded state of every kind",
		Action: func(c *cli.Context) error {
			orch, err := orchestratorFor(c, opts)
			if err != nil {
				return err
			}

			snapshot, err := orch.Status(c.Context)
			if snapshot != nil {
				if rerr := renderStatus(c.App.Writer, orch.Config().Namespace, snapshot, c.Bool(flagJSON)); rerr != nil {
					return rerr
				}
			}
			return err
		},
	}
}
