package commands

import (
	"fmt"

	"github.com/savaki/gamelift-backend/internal/di"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/graph"
	"github.com/savaki/gamelift-backend/internal/orchestrator"
	"github.com/urfave/cli/v2"
)

const (
	formatDOT     = "dot"
	formatMermaid = "mermaid"
)

// GraphCommand returns the graph command
func GraphCommand(opts ...di.Option) *cli.Command {
	return &cli.Command{
		Name:  "graph",
		Usage: "Print the dependency graph annotated with recorded status",
		Description: `Examples:
  # Render with graphviz
  gamelift-backend graph --format dot | dot -Tpng -o graph.png`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("%s or %s", formatDOT, formatMermaid),
				Value:   formatDOT,
			},
		},
		Action: func(c *cli.Context) error {
			format := c.String("format")
			if format != formatDOT && format != formatMermaid {
				return fmt.Errorf("unsupported format %q", format)
			}

			container, err := newContainer(c, opts)
			if err != nil {
				return err
			}
			g, err := di.Get[*graph.Graph](container)
			if err != nil {
				return err
			}
			orch, err := di.Get[*orchestrator.Orchestrator](container)
			if err != nil {
				return err
			}

			snapshot, err := orch.Status(c.Context)
			var corruption *errors.StateCorruptionError
			if err != nil && !errors.As(err, &corruption) {
				return err
			}

			switch format {
			case formatMermaid:
				_, err = fmt.Fprint(c.App.Writer, g.Mermaid(snapshot))
			default:
				_, err = fmt.Fprint(c.App.Writer, g.DOT(snapshot))
			}
			return err
		},
	}
}
