package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/config"
	"github.com/savaki/gamelift-backend/internal/dao/resourcedao"
	"github.com/savaki/gamelift-backend/internal/graph"
	"github.com/savaki/gamelift-backend/internal/orchestrator"
	"github.com/savaki/gamelift-backend/internal/policy"
	"github.com/savaki/gamelift-backend/internal/provider"
	"github.com/savaki/gamelift-backend/internal/state"
)

func ProvideResourceDAO(cfg config.Config, client *dynamodb.Client) *resourcedao.DAO {
	return resourcedao.New(client, cfg.State.Table)
}

// ProvideStore selects the state backend named by state.backend.
func ProvideStore(ctx context.Context, cfg config.Config, dao *resourcedao.DAO) (state.Store, error) {
	switch cfg.State.Backend {
	case config.BackendFile:
		zerolog.Ctx(ctx).Debug().Str("dir", cfg.State.Dir).Msg("Using file state store")
		return state.NewFileStore(cfg.State.Dir), nil

	case config.BackendDynamoDB:
		zerolog.Ctx(ctx).Debug().Str("table", cfg.State.Table).Msg("Using DynamoDB state store")
		return dao, nil
	}
	return nil, fmt.Errorf("unsupported state backend %q", cfg.State.Backend)
}

func ProvideValidator(ctx context.Context) (*policy.Validator, error) {
	return policy.NewValidator(ctx, policy.DefaultLimits)
}

func ProvideGraph() *graph.Graph {
	return graph.Default()
}

func ProvideOrchestrator(g *graph.Graph, store state.Store, client provider.Client, cfg config.Config, validator *policy.Validator) *orchestrator.Orchestrator {
	return orchestrator.New(g, store, client, cfg, orchestrator.WithValidator(validator))
}
