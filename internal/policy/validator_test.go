package policy

import (
	"context"
	"testing"

	"github.com/savaki/gamelift-backend/internal/config"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Evaluate(t *testing.T) {
	ctx := context.Background()
	validator, err := NewValidator(ctx, DefaultLimits)
	require.NoError(t, err)

	tests := []struct {
		name             string
		mutate           func(c *config.Config)
		expectAllow      bool
		expectViolations []string
	}{
		{
			name:        "defaults",
			mutate:      func(c *config.Config) {},
			expectAllow: true,
		},
		{
			name: "windows path with backslashes",
			mutate: func(c *config.Config) {
				c.Fleet.LaunchPath = `C:\game\Server.exe`
			},
			expectAllow: true,
		},
		{
			name: "linux build",
			mutate: func(c *config.Config) {
				c.Build.OperatingSystem = "AMAZON_LINUX_2023"
				c.Fleet.LaunchPath = "/local/game/server"
			},
			expectAllow: true,
		},
		{
			name: "linux build with windows path",
			mutate: func(c *config.Config) {
				c.Build.OperatingSystem = "AMAZON_LINUX_2"
			},
			expectViolations: []string{
				`fleet.launch_path: "C:/game/MyProject/Binaries/Win64/MyProjectServer.exe" must be under /local/game/ on AMAZON_LINUX_2`,
			},
		},
		{
			name: "unknown os",
			mutate: func(c *config.Config) {
				c.Build.OperatingSystem = "BEOS"
			},
			expectViolations: []string{
				`build.os: unsupported operating system "BEOS"`,
			},
		},
		{
			name: "reserved port and too many processes",
			mutate: func(c *config.Config) {
				c.Fleet.Port = 80
				c.Fleet.ConcurrentProcesses = 51
			},
			expectViolations: []string{
				"fleet.concurrent_processes: at most 50 server processes may run per instance",
				"fleet.port: 80 is below the lowest allowed port 1026",
			},
		},
		{
			name: "instance type",
			mutate: func(c *config.Config) {
				c.Fleet.InstanceType = "large"
			},
			expectViolations: []string{
				`fleet.instance_type: "large" is not an EC2 instance type`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(&cfg)

			result, err := validator.Evaluate(ctx, cfg.Resolve())
			require.NoError(t, err)
			assert.Equal(t, tt.expectAllow, result.Allowed)
			assert.Equal(t, tt.expectViolations, result.Violations)
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	ctx := context.Background()
	validator, err := NewValidator(ctx, DefaultLimits)
	require.NoError(t, err)

	assert.NoError(t, validator.Validate(ctx, config.Defaults()))

	cfg := config.Defaults()
	cfg.Fleet.Port = 70000
	err = validator.Validate(ctx, cfg)

	var errs errors.ConfigurationErrors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "fleet.port", errs[0].Field)
	assert.Equal(t, "70000 is above the highest allowed port 60000", errs[0].Reason)
}

func TestValidator_Limits(t *testing.T) {
	ctx := context.Background()
	validator, err := NewValidator(ctx, Limits{MinPort: 1026, MaxPort: 60000, MaxProcesses: 50, MaxTestUsers: 2})
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.UserPool.TestUsers = 3
	result, err := validator.Evaluate(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, []string{"user_pool.test_users: at most 2 test users may be created"}, result.Violations)
}
