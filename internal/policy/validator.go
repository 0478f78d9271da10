// Package policy runs preflight checks over a resolved configuration before
// any provider call is made.
package policy

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/savaki/gamelift-backend/internal/config"
	"github.com/savaki/gamelift-backend/internal/errors"
)

//go:embed gamelift.rego
var policyContent string

// Limits are exposed to the policy as data.limits.
type Limits struct {
	MinPort      int `json:"min_port"`
	MaxPort      int `json:"max_port"`
	MaxProcesses int `json:"max_processes"`
	MaxTestUsers int `json:"max_test_users"`
}

// DefaultLimits mirror the GameLift fleet port range and per-instance process cap.
var DefaultLimits = Limits{
	MinPort:      1026,
	MaxPort:      60000,
	MaxProcesses: 50,
	MaxTestUsers: 100,
}

type Validator struct {
	prepared rego.PreparedEvalQuery
}

type ValidationResult struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
}

func NewValidator(ctx context.Context, limits Limits) (*Validator, error) {
	store := inmem.NewFromObject(map[string]interface{}{
		"limits": map[string]interface{}{
			"min_port":       limits.MinPort,
			"max_port":       limits.MaxPort,
			"max_processes":  limits.MaxProcesses,
			"max_test_users": limits.MaxTestUsers,
		},
	})

	query, err := rego.New(
		rego.Query("data.gamelift.violations"),
		rego.Module("gamelift.rego", policyContent),
		rego.Store(store),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query: %w", err)
	}

	return &Validator{
		prepared: query,
	}, nil
}

func input(cfg config.Config) map[string]interface{} {
	return map[string]interface{}{
		"namespace": cfg.Namespace,
		"build": map[string]interface{}{
			"name":    cfg.Build.Name,
			"version": cfg.Build.Version,
			"os":      cfg.Build.OperatingSystem,
		},
		"fleet": map[string]interface{}{
			"name":                 cfg.Fleet.Name,
			"launch_path":          cfg.Fleet.LaunchPath,
			"instance_type":        cfg.Fleet.InstanceType,
			"port":                 cfg.Fleet.Port,
			"concurrent_processes": cfg.Fleet.ConcurrentProcesses,
		},
		"user_pool": map[string]interface{}{
			"name":       cfg.UserPool.Name,
			"test_users": cfg.UserPool.TestUsers,
		},
	}
}

// Evaluate returns every policy violation for cfg, sorted.
func (v *Validator) Evaluate(ctx context.Context, cfg config.Config) (*ValidationResult, error) {
	results, err := v.prepared.Eval(ctx, rego.EvalInput(input(cfg)))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	result := &ValidationResult{Allowed: true}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return result, nil
	}

	switch value := results[0].Expressions[0].Value.(type) {
	case []interface{}:
		for _, violation := range value {
			if str, ok := violation.(string); ok {
				result.Violations = append(result.Violations, str)
			}
		}
	case map[string]interface{}:
		for violation := range value {
			result.Violations = append(result.Violations, violation)
		}
	}

	sort.Strings(result.Violations)
	result.Allowed = len(result.Violations) == 0
	return result, nil
}

// Validate converts violations into configuration errors.
func (v *Validator) Validate(ctx context.Context, cfg config.Config) error {
	result, err := v.Evaluate(ctx, cfg)
	if err != nil {
		return err
	}
	if result.Allowed {
		return nil
	}

	var errs errors.ConfigurationErrors
	for _, violation := range result.Violations {
		field, reason, ok := strings.Cut(violation, ": ")
		if !ok {
			field, reason = "", violation
		}
		errs = append(errs, &errors.ConfigurationError{Field: field, Reason: reason})
	}
	return errs
}
