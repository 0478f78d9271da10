package commands

import (
	"fmt"
	"strings"

	"github.com/savaki/gamelift-backend/internal/di"
	"github.com/savaki/gamelift-backend/internal/orchestrator"
	"github.com/savaki/gamelift-backend/internal/resource"
	"github.com/urfave/cli/v2"
)

const targetAll = "all"

// CreateCommand returns the create command
func CreateCommand(opts ...di.Option) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create resources and everything they depend on",
		ArgsUsage: "<kind|all>...",
		Description: `Creates each named kind after its prerequisites. Kinds that are already active
are skipped, so create can be repeated to resume after a failure.

Examples:
  # Create the whole backend
  gamelift-backend --namespace demo create all

  # Create only the fleet (and the build it needs)
  gamelift-backend --namespace demo create fleet`,
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
				result, err = orch.CreateAll(c.Context)
			} else {
				result, err = orch.Create(c.Context, kinds...)
			}
			return report(c, result, err)
		},
	}
}

// parseTargets reads the kinds named on the command line.
func parseTargets(c *cli.Context) (all bool, kinds []resource.Kind, err error) {
	if c.NArg() == 0 {
		return false, nil, fmt.Errorf("a kind is required: %s or %s", strings.Join(resource.CLINames(), ", "), targetAll)
	}
	for _, arg := range c.Args().Slice() {
		if strings.EqualFold(arg, targetAll) {
			return true, nil, nil
		}
		parsed, err := resource.ParseKinds(arg)
		if err != nil {
			return false, nil, err
		}
		kinds = append(kinds, parsed...)
	}
	return false, kinds, nil
}

func orchestratorFor(c *cli.Context, opts []di.Option) (*orchestrator.Orchestrator, error) {
	container, err := newContainer(c, opts)
	if err != nil {
		return nil, err
	}
	return di.Get[*orchestrator.Orchestrator](container)
}

// report prints the result, if any, and returns err or an error naming the
// failed kind.
func report(c *cli.Context, result *resource.Result, err error) error {
	if result != nil && len(result.Outcomes) > 0 {
		if rerr := renderResult(c.App.Writer, result, c.Bool(flagJSON)); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return err
	}
	if failed, ok := result.Failed(); ok {
		return fmt.Errorf("%s failed: %s", failed.Kind, failed.Cause)
	}
	return nil
}
