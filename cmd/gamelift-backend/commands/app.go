package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/config"
	"github.com/savaki/gamelift-backend/internal/di"
	"github.com/urfave/cli/v2"
)

const (
	flagConfig       = "config"
	flagSet          = "set"
	flagSSM          = "ssm"
	flagNamespace    = "namespace"
	flagRegion       = "region"
	flagProfile      = "profile"
	flagStateBackend = "state-backend"
	flagStateDir     = "state-dir"
	flagPassword     = "test-user-password-secret"
	flagJSON         = "json"
	flagLogLevel     = "log-level"
)

// flagKeys maps convenience flags onto configuration keys.
var flagKeys = map[string]string{
	flagNamespace:    "namespace",
	flagRegion:       "region",
	flagProfile:      "profile",
	flagStateBackend: "state.backend",
	flagStateDir:     "state.dir",
	flagPassword:     "user_pool.test_user_password_secret",
}

// NewApp returns the command line application. opts are passed to every
// container the commands build.
func NewApp(logger zerolog.Logger, opts ...di.Option) *cli.App {
	return &cli.App{
		Name:  "gamelift-backend",
		Usage: "Provision and tear down a GameLift game backend",
		Description: `Creates and deletes the resources behind a GameLift game: the server build,
the fleet, a Cognito user pool, the login and start-session functions and the
REST API in front of them. Resources are created in dependency order and every
step is recorded so an interrupted run can be resumed.

Kinds: build, fleet, user-pool, login-function, start-session-function, rest-api
(lambdas names both functions, all names every kind).

Every configuration key can be set with --set key=value or an environment
variable such as GAMELIFT_BACKEND_FLEET_INSTANCE_TYPE.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"GAMELIFT_BACKEND_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:  flagSet,
				Usage: "override a configuration key, e.g. --set fleet.instance_type=c5.xlarge",
			},
			&cli.BoolFlag{
				Name:    flagSSM,
				Usage:   "read overrides from Parameter Store under /<namespace>/gamelift-backend/",
				EnvVars: []string{"GAMELIFT_BACKEND_SSM"},
			},
			&cli.StringFlag{
				Name:    flagNamespace,
				Aliases: []string{"n"},
				Usage:   "namespace substituted for [prefix] in every resource name",
				EnvVars: []string{config.EnvName("namespace")},
			},
			&cli.StringFlag{
				Name:    flagRegion,
				Usage:   "AWS region",
				EnvVars: []string{config.EnvName("region")},
			},
			&cli.StringFlag{
				Name:    flagProfile,
				Usage:   "AWS shared config profile",
				EnvVars: []string{config.EnvName("profile")},
			},
			&cli.StringFlag{
				Name:    flagStateBackend,
				Usage:   fmt.Sprintf("where resource records are kept (%s or %s)", config.BackendFile, config.BackendDynamoDB),
				EnvVars: []string{config.EnvName("state.backend")},
			},
			&cli.StringFlag{
				Name:    flagStateDir,
				Usage:   "directory for the file state backend",
				EnvVars: []string{config.EnvName("state.dir")},
			},
			&cli.StringFlag{
				Name:  flagPassword,
				Usage: "Secrets Manager secret holding the test user password",
			},
			&cli.BoolFlag{
				Name:  flagJSON,
				Usage: "print results as JSON",
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			level, err := zerolog.ParseLevel(strings.ToLower(c.String(flagLogLevel)))
			if err != nil {
				return fmt.Errorf("invalid --%s: %w", flagLogLevel, err)
			}
			c.Context = logger.Level(level).WithContext(c.Context)
			return nil
		},
		Commands: []*cli.Command{
			CreateCommand(opts...),
			DeleteCommand(opts...),
			StatusCommand(opts...),
			GraphCommand(opts...),
			CheckCommand(opts...),
			StateCommand(opts...),
		},
	}
}

// bootstrap collects the settings known before configuration is resolved.
func bootstrap(c *cli.Context) (di.Bootstrap, error) {
	b := di.Bootstrap{
		File:      c.String(flagConfig),
		Overrides: map[string]string{},
		UseSSM:    c.Bool(flagSSM),
	}
	for _, assignment := range c.StringSlice(flagSet) {
		key, value, err := config.ParseAssignment(assignment)
		if err != nil {
			return b, err
		}
		b.Overrides[key] = value
	}
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			b.Overrides[key] = c.String(flag)
		}
	}
	return b, nil
}

func newContainer(c *cli.Context, opts []di.Option) (di.Container, error) {
	b, err := bootstrap(c)
	if err != nil {
		return nil, err
	}
	opts = append([]di.Option{di.WithContext(c.Context)}, opts...)
	return di.New(b, opts...)
}
