package commands

import (
	"github.com/savaki/gamelift-backend/internal/di"
	"github.com/savaki/gamelift-backend/internal/resource"
	"github.com/urfave/cli/v2"
)

// DeleteCommand returns the delete command
func DeleteCommand(opts ...di.Option) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete resources and everything that depends on them",
		ArgsUsage: "<kind|all>...",
		Description: `Deletes each named kind after the kinds that depend on it. Kinds that are
already absent are skipped.

Examples:
  # Tear down the whole backend
  gamelift-backend --namespace demo delete all

  # Replace the REST API
  gamelift-backend --namespace demo delete rest-api`,
		Action: func(c *cli.Context) error {
			all, kinds, err := parseTargets(c)
			if err != nil {
				return err
			}

			orch, err := orchestratorFor(c, opts)
			if err != nil {
				return err
			}

			var result *resource.Result
			if all {
				result, err = orch.DeleteAll(c.Context)
			} else {
				result, err = orch.Delete(c.Context, kinds...)
			}
			return report(c, result, err)
		},
	}
}
