package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/savaki/gamelift-backend/internal/config"
	"github.com/savaki/gamelift-backend/internal/provider"
)

// ProvideAWSConfig loads the shared AWS configuration for the region and
// profile named by the file and flags.
func ProvideAWSConfig(ctx context.Context, b Bootstrap) (aws.Config, error) {
	located, err := config.Locate(config.Options{File: b.File, Overrides: b.Overrides})
	if err != nil {
		return aws.Config{}, err
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(located.Region),
	}
	if located.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(located.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func ProvideDynamoDB(cfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg)
}

func ProvideSecretsClient(cfg aws.Config) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(cfg)
}

// ProvideClients builds the service clients used by the resource drivers in
// the configured region.
func ProvideClients(awsConfig aws.Config, cfg config.Config) provider.Clients {
	regional := awsConfig.Copy()
	regional.Region = cfg.Region
	return provider.NewClients(regional)
}

func ProvideResourceClient(clients provider.Clients) provider.Client {
	return provider.New(clients)
}

func ProvideAccessChecker(clients provider.Clients) *provider.AccessChecker {
	return provider.NewAccessChecker(clients.IAM, clients.STS)
}
