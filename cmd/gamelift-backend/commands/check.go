package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/di"
	"github.com/savaki/gamelift-backend/internal/provider"
	"github.com/urfave/cli/v2"
)

// CheckCommand returns the check command
func CheckCommand(opts ...di.Option) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify the caller holds AdministratorAccess",
		Description: `Looks up the calling identity and the managed policies attached to the user
directly or through its groups. Creating the backend needs IAM, GameLift,
Cognito, Lambda and API Gateway permissions, so AdministratorAccess is expected.`,
		Action: func(c *cli.Context) error {
			logger := zerolog.Ctx(c.Context)

			container, err := newContainer(c, opts)
			if err != nil {
				return err
			}
			checker, err := di.Get[*provider.AccessChecker](container)
			if err != nil {
				return err
			}

			access, err := checker.Check(c.Context)
			if err != nil {
				return err
			}
			if err := renderAccess(c.App.Writer, access, c.Bool(flagJSON)); err != nil {
				return err
			}

			if !access.Administrator {
				return fmt.Errorf("%s does not have AdministratorAccess", access.Arn)
			}
			logger.Info().Str("arn", access.Arn).Msg("caller has AdministratorAccess")
			return nil
		},
	}
}
