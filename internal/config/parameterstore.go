package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterStore supplies overrides keyed by the dotted names accepted by With.
type ParameterStore interface {
	// Parameters returns every override found for the namespace.
	Parameters(ctx context.Context, namespace string) (map[string]string, error)
}

// SSMClient is the subset of the SSM API used by SSMParameterStore.
type SSMClient interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// ParameterPath returns the Parameter Store prefix holding overrides for namespace.
func ParameterPath(namespace string) string {
	return fmt.Sprintf("/%s/gamelift-backend", namespace)
}

// SSMParameterStore reads overrides from /<namespace>/gamelift-backend/...
// where fleet/instance-type maps to fleet.instance_type.
type SSMParameterStore struct {
	client SSMClient
	mu     sync.RWMutex
	cache  map[string]map[string]string
}

func NewSSMParameterStore(client SSMClient) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		cache:  map[string]map[string]string{},
	}
}

func (s *SSMParameterStore) Parameters(ctx context.Context, namespace string) (map[string]string, error) {
	s.mu.RLock()
	if params, ok := s.cache[namespace]; ok {
		s.mu.RUnlock()
		return params, nil
	}
	s.mu.RUnlock()

	path := ParameterPath(namespace)
	params := map[string]string{}

	var token *string
	for {
		result, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           aws.String(path),
			Recursive:      aws.Bool(true),
			WithDecryption: aws.Bool(true),
			NextToken:      token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
		}

		for _, param := range result.Parameters {
			if param.Name == nil || param.Value == nil {
				continue
			}
			key := NormalizeKey(strings.TrimPrefix(*param.Name, path))
			if key == "" {
				continue
			}
			params[key] = *param.Value
		}

		if result.NextToken == nil || *result.NextToken == "" {
			break
		}
		token = result.NextToken
	}

	s.mu.Lock()
	s.cache[namespace] = params
	s.mu.Unlock()

	return params, nil
}

// EnvParameterStore reads overrides from GAMELIFT_BACKEND_* environment
// variables. Used when Parameter Store is not enabled.
type EnvParameterStore struct {
	lookup func(string) (string, bool)
}

func NewEnvParameterStore() *EnvParameterStore {
	return &EnvParameterStore{lookup: os.LookupEnv}
}

func (e *EnvParameterStore) Parameters(_ context.Context, _ string) (map[string]string, error) {
	params := map[string]string{}
	for _, key := range Keys() {
		if key == "namespace" {
			continue
		}
		if v, ok := e.lookup(EnvName(key)); ok && v != "" {
			params[key] = v
		}
	}
	return params, nil
}
