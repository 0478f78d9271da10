package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/config"
)

// ProvideSSMClient provides an SSM client for Parameter Store access
// Returns nil unless --ssm was requested
func ProvideSSMClient(awsConfig aws.Config, b Bootstrap) *ssm.Client {
	if !b.UseSSM {
		return nil
	}

	return ssm.NewFromConfig(awsConfig)
}

// ProvideParameterStore provides a ParameterStore implementation
// Uses SSM Parameter Store when enabled, falls back to environment variables otherwise
func ProvideParameterStore(ctx context.Context, ssmClient *ssm.Client) config.ParameterStore {
	logger := zerolog.Ctx(ctx)

	if ssmClient == nil {
		logger.Debug().Msg("Using environment variables for configuration overrides")
		return config.NewEnvParameterStore()
	}

	logger.Debug().Msg("Using AWS Systems Manager Parameter Store for configuration overrides")
	return config.NewSSMParameterStore(ssmClient)
}

// ProvideConfig resolves and validates the configuration, then loads the test
// user password from Secrets Manager when one is named
func ProvideConfig(ctx context.Context, b Bootstrap, store config.ParameterStore, secrets *secretsmanager.Client) (config.Config, error) {
	logger := zerolog.Ctx(ctx)

	cfg, err := config.Load(ctx, config.Options{
		File:      b.File,
		Store:     store,
		Overrides: b.Overrides,
	})
	if err != nil {
		return cfg, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg, err = cfg.ResolvePassword(ctx, secrets)
	if err != nil {
		return cfg, err
	}

	logger.Debug().
		Str("namespace", cfg.Namespace).
		Str("region", cfg.Region).
		Str("state_backend", cfg.State.Backend).
		Bool("has_test_user_password", cfg.UserPool.TestUserPassword != "").
		Msg("Configuration loaded successfully")

	return cfg, nil
}
