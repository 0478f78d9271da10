package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsClient is the subset of the Secrets Manager API used to resolve the
// test user password.
type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type passwordSecret struct {
	Password string `json:"password"`
}

// ResolvePassword returns a copy of c with UserPool.TestUserPassword loaded
// from Secrets Manager when a secret is named and no literal password is set.
// The secret may hold the raw password or a JSON object with a password field.
func (c Config) ResolvePassword(ctx context.Context, client SecretsClient) (Config, error) {
	secretName := c.UserPool.TestUserPasswordSecret
	if c.UserPool.TestUserPassword != "" || secretName == "" || client == nil {
		return c, nil
	}

	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return c, fmt.Errorf("failed to get secret %s: %w", secretName, err)
	}
	if result.SecretString == nil {
		return c, fmt.Errorf("secret %s has no string value", secretName)
	}

	value := strings.TrimSpace(*result.SecretString)
	if strings.HasPrefix(value, "{") {
		var secret passwordSecret
		if err := json.Unmarshal([]byte(value), &secret); err != nil {
			return c, fmt.Errorf("failed to unmarshal secret %s: %w", secretName, err)
		}
		if secret.Password == "" {
			return c, fmt.Errorf("password field is empty in secret %s", secretName)
		}
		value = secret.Password
	}

	c.UserPool.TestUserPassword = value
	return c, nil
}
