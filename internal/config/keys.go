package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/savaki/gamelift-backend/internal/errors"
)

type setter func(c *Config, value string) error

func str(field func(c *Config) *string) setter {
	return func(c *Config, value string) error {
		*field(c) = value
		return nil
	}
}

func integer(field func(c *Config) *int) setter {
	return func(c *Config, value string) error {
		v, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("not an integer: %q", value)
		}
		*field(c) = v
		return nil
	}
}

func duration(field func(c *Config) *time.Duration) setter {
	return func(c *Config, value string) error {
		v, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("not a duration: %q", value)
		}
		*field(c) = v
		return nil
	}
}

// keys maps dotted parameter keys to their fields. The same keys are used by
// --set, Parameter Store paths and environment variables.
var keys = map[string]setter{
	"namespace":                           str(func(c *Config) *string { return &c.Namespace }),
	"region":                              str(func(c *Config) *string { return &c.Region }),
	"profile":                             str(func(c *Config) *string { return &c.Profile }),
	"build.name":                          str(func(c *Config) *string { return &c.Build.Name }),
	"build.version":                       str(func(c *Config) *string { return &c.Build.Version }),
	"build.os":                            str(func(c *Config) *string { return &c.Build.OperatingSystem }),
	"build.root":                          str(func(c *Config) *string { return &c.Build.Root }),
	"build.timeout":                       duration(func(c *Config) *time.Duration { return &c.Build.Timeout }),
	"fleet.name":                          str(func(c *Config) *string { return &c.Fleet.Name }),
	"fleet.description":                   str(func(c *Config) *string { return &c.Fleet.Description }),
	"fleet.launch_path":                   str(func(c *Config) *string { return &c.Fleet.LaunchPath }),
	"fleet.launch_parameters":             str(func(c *Config) *string { return &c.Fleet.LaunchParameters }),
	"fleet.instance_type":                 str(func(c *Config) *string { return &c.Fleet.InstanceType }),
	"fleet.port":                          integer(func(c *Config) *int { return &c.Fleet.Port }),
	"fleet.concurrent_processes":          integer(func(c *Config) *int { return &c.Fleet.ConcurrentProcesses }),
	"fleet.timeout":                       duration(func(c *Config) *time.Duration { return &c.Fleet.Timeout }),
	"user_pool.name":                      str(func(c *Config) *string { return &c.UserPool.Name }),
	"user_pool.client_name":               str(func(c *Config) *string { return &c.UserPool.ClientName }),
	"user_pool.domain_prefix":             str(func(c *Config) *string { return &c.UserPool.DomainPrefix }),
	"user_pool.test_users":                integer(func(c *Config) *int { return &c.UserPool.TestUsers }),
	"user_pool.test_user_prefix":          str(func(c *Config) *string { return &c.UserPool.TestUserPrefix }),
	"user_pool.test_user_password":        str(func(c *Config) *string { return &c.UserPool.TestUserPassword }),
	"user_pool.test_user_password_secret": str(func(c *Config) *string { return &c.UserPool.TestUserPasswordSecret }),
	"functions.login.name":                str(func(c *Config) *string { return &c.Functions.Login.Name }),
	"functions.login.role":                str(func(c *Config) *string { return &c.Functions.Login.Role }),
	"functions.login.package":             str(func(c *Config) *string { return &c.Functions.Login.Package }),
	"functions.start_session.name":        str(func(c *Config) *string { return &c.Functions.StartSession.Name }),
	"functions.start_session.role":        str(func(c *Config) *string { return &c.Functions.StartSession.Role }),
	"functions.start_session.package":     str(func(c *Config) *string { return &c.Functions.StartSession.Package }),
	"functions.memory_size":               integer(func(c *Config) *int { return &c.Functions.MemorySize }),
	"functions.timeout":                   duration(func(c *Config) *time.Duration { return &c.Functions.Timeout }),
	"rest_api.name":                       str(func(c *Config) *string { return &c.RestApi.Name }),
	"rest_api.stage":                      str(func(c *Config) *string { return &c.RestApi.StageName }),
	"rest_api.login_path":                 str(func(c *Config) *string { return &c.RestApi.LoginPath }),
	"rest_api.start_session_path":         str(func(c *Config) *string { return &c.RestApi.StartSessionPath }),
	"rest_api.authorizer":                 str(func(c *Config) *string { return &c.RestApi.AuthorizerName }),
	"state.backend":                       str(func(c *Config) *string { return &c.State.Backend }),
	"state.dir":                           str(func(c *Config) *string { return &c.State.Dir }),
	"state.table":                         str(func(c *Config) *string { return &c.State.Table }),
	"polling.initial_interval":            duration(func(c *Config) *time.Duration { return &c.Polling.InitialInterval }),
	"polling.max_interval":                duration(func(c *Config) *time.Duration { return &c.Polling.MaxInterval }),
}

// Keys lists every settable key in sorted order.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeKey accepts "fleet.instance_type", "fleet/instance-type" and
// "FLEET_INSTANCE_TYPE" style spellings of a key where unambiguous.
func NormalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.Trim(k, "/")
	k = strings.ReplaceAll(k, "/", ".")
	k = strings.ReplaceAll(k, "-", "_")
	return k
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return "GAMELIFT_BACKEND_" + strings.ToUpper(strings.ReplaceAll(NormalizeKey(key), ".", "_"))
}

// With returns a copy of c with key set to value.
func (c Config) With(key, value string) (Config, error) {
	set, ok := keys[NormalizeKey(key)]
	if !ok {
		return c, &errors.ConfigurationError{Field: key, Reason: "unknown parameter"}
	}
	if err := set(&c, value); err != nil {
		return c, &errors.ConfigurationError{Field: NormalizeKey(key), Reason: err.Error()}
	}
	return c, nil
}

// WithAll applies every key/value pair in sorted key order.
func (c Config) WithAll(params map[string]string) (Config, error) {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	var errs errors.ConfigurationErrors
	for _, k := range names {
		next, err := c.With(k, params[k])
		if err != nil {
			var ce *errors.ConfigurationError
			if errors.As(err, &ce) {
				errs = append(errs, ce)
			}
			continue
		}
		c = next
	}
	if len(errs) > 0 {
		return c, errs
	}
	return c, nil
}

// ParseAssignment splits "key=value".
func ParseAssignment(s string) (key, value string, err error) {
	idx := strings.Index(s, "=")
	if idx <= 0 {
		return "", "", &errors.ConfigurationError{Field: s, Reason: "expected key=value"}
	}
	return strings.TrimSpace(s[:idx]), s[idx+1:], nil
}
