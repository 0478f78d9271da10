package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
	"gopkg.in/yaml.v3"
)

var validNamespace = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)

// Options controls where Load looks for overrides.
type Options struct {
	// File is an optional YAML document overlaid onto the defaults.
	File string
	// Store supplies per-namespace overrides, typically Parameter Store.
	Store ParameterStore
	// Overrides are applied last, normally from command line flags.
	Overrides map[string]string
}

// Load resolves a Config with precedence defaults < file < store < overrides.
// The result has placeholders resolved and has passed Validate.
func Load(ctx context.Context, opts Options) (Config, error) {
	cfg := Defaults()

	if opts.File != "" {
		next, err := cfg.Overlay(opts.File)
		if err != nil {
			return cfg, err
		}
		cfg = next
	}

	// the namespace decides which parameters are read, so apply it first
	if ns, ok := opts.Overrides["namespace"]; ok {
		cfg.Namespace = ns
	}

	if opts.Store != nil && cfg.Namespace != "" {
		params, err := opts.Store.Parameters(ctx, cfg.Namespace)
		if err != nil {
			return cfg, err
		}
		delete(params, "namespace")
		next, err := cfg.WithAll(params)
		if err != nil {
			return cfg, err
		}
		cfg = next
	}

	next, err := cfg.WithAll(opts.Overrides)
	if err != nil {
		return cfg, err
	}
	cfg = next.Resolve()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Locate resolves defaults, file and overrides without consulting a
// parameter store. The result names the region and profile that hold the store
// and is not validated.
func Locate(opts Options) (Config, error) {
	cfg := Defaults()
	if opts.File != "" {
		next, err := cfg.Overlay(opts.File)
		if err != nil {
			return cfg, err
		}
		cfg = next
	}
	next, err := cfg.WithAll(opts.Overrides)
	if err != nil {
		return cfg, err
	}
	return next.Resolve(), nil
}

// Overlay returns a copy of c with the fields present in the YAML file at path
// replaced. Fields absent from the file keep their current value.
func (c Config) Overlay(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, &errors.ConfigurationError{Field: "config", Reason: fmt.Sprintf("unable to read %s: %v", path, err)}
	}
	return c.OverlayYAML(data)
}

func (c Config) OverlayYAML(data []byte) (Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return c, nil
		}
		return c, &errors.ConfigurationError{Field: "config", Reason: err.Error()}
	}
	return c, nil
}

// Validate checks every parameter that can be checked without touching the
// filesystem or a provider.
func (c Config) Validate() error {
	var errs errors.ConfigurationErrors
	add := func(field, reason string) {
		errs = append(errs, &errors.ConfigurationError{Field: field, Reason: reason})
	}
	required := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			add(field, "is required")
		}
	}

	switch {
	case c.Namespace == "":
		add("namespace", "is required")
	case !validNamespace.MatchString(c.Namespace):
		add("namespace", "must be 1-32 lowercase letters, digits or hyphens")
	}
	required("region", c.Region)

	required("build.name", c.Build.Name)
	required("build.version", c.Build.Version)
	required("build.os", c.Build.OperatingSystem)
	required("build.root", c.Build.Root)
	if c.Build.Timeout <= 0 {
		add("build.timeout", "must be positive")
	}

	required("fleet.name", c.Fleet.Name)
	required("fleet.launch_path", c.Fleet.LaunchPath)
	required("fleet.instance_type", c.Fleet.InstanceType)
	if c.Fleet.Port < 1 || c.Fleet.Port > 65535 {
		add("fleet.port", "must be between 1 and 65535")
	}
	if c.Fleet.ConcurrentProcesses < 1 {
		add("fleet.concurrent_processes", "must be at least 1")
	}
	if c.Fleet.Timeout <= 0 {
		add("fleet.timeout", "must be positive")
	}

	required("user_pool.name", c.UserPool.Name)
	required("user_pool.client_name", c.UserPool.ClientName)
	if c.UserPool.TestUsers < 0 {
		add("user_pool.test_users", "must not be negative")
	}
	if c.UserPool.TestUsers > 0 {
		required("user_pool.test_user_prefix", c.UserPool.TestUserPrefix)
		if c.UserPool.TestUserPassword == "" && c.UserPool.TestUserPasswordSecret == "" {
			add("user_pool.test_user_password", "a password or password secret is required when test users are requested")
		}
	}

	for _, fn := range []struct {
		key string
		cfg FunctionConfig
	}{
		{key: "functions.login", cfg: c.Functions.Login},
		{key: "functions.start_session", cfg: c.Functions.StartSession},
	} {
		required(fn.key+".name", fn.cfg.Name)
		required(fn.key+".role", fn.cfg.Role)
		required(fn.key+".package", fn.cfg.Package)
	}
	if c.Functions.MemorySize < 128 || c.Functions.MemorySize > 10240 {
		add("functions.memory_size", "must be between 128 and 10240")
	}
	if c.Functions.Timeout <= 0 {
		add("functions.timeout", "must be positive")
	}

	required("rest_api.name", c.RestApi.Name)
	required("rest_api.stage", c.RestApi.StageName)
	required("rest_api.authorizer", c.RestApi.AuthorizerName)
	for key, path := range map[string]string{
		"rest_api.login_path":         c.RestApi.LoginPath,
		"rest_api.start_session_path": c.RestApi.StartSessionPath,
	} {
		switch {
		case path == "":
			add(key, "is required")
		case strings.Contains(path, "/"):
			add(key, "must be a single path segment")
		}
	}
	if c.RestApi.LoginPath != "" && c.RestApi.LoginPath == c.RestApi.StartSessionPath {
		add("rest_api.start_session_path", "must differ from rest_api.login_path")
	}

	// provider names are the only link between a namespace and what teardown sweeps
	if validNamespace.MatchString(c.Namespace) {
		for _, n := range []struct {
			key, value string
		}{
			{key: "build.name", value: c.Build.Name},
			{key: "fleet.name", value: c.Fleet.Name},
			{key: "user_pool.name", value: c.UserPool.Name},
			{key: "user_pool.client_name", value: c.UserPool.ClientName},
			{key: "functions.login.name", value: c.Functions.Login.Name},
			{key: "functions.start_session.name", value: c.Functions.StartSession.Name},
			{key: "rest_api.name", value: c.RestApi.Name},
		} {
			if n.value == "" || strings.Contains(n.value, Placeholder) {
				continue
			}
			if !strings.Contains(n.value, c.Namespace) {
				add(n.key, fmt.Sprintf("must contain the namespace %q", c.Namespace))
			}
		}
	}

	switch c.State.Backend {
	case BackendFile:
		required("state.dir", c.State.Dir)
	case BackendDynamoDB:
		required("state.table", c.State.Table)
	default:
		add("state.backend", fmt.Sprintf("must be %q or %q", BackendFile, BackendDynamoDB))
	}

	if c.Polling.InitialInterval <= 0 {
		add("polling.initial_interval", "must be positive")
	}
	if c.Polling.MaxInterval < c.Polling.InitialInterval {
		add("polling.max_interval", "must not be less than polling.initial_interval")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateKind checks the inputs that must exist locally before kind can be
// created.
func (c Config) ValidateKind(kind resource.Kind) error {
	var errs errors.ConfigurationErrors
	mustExist := func(field, path string, dir bool) {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			errs = append(errs, &errors.ConfigurationError{Field: field, Reason: fmt.Sprintf("%s does not exist", path)})
		case dir && !info.IsDir():
			errs = append(errs, &errors.ConfigurationError{Field: field, Reason: fmt.Sprintf("%s is not a directory", path)})
		case !dir && info.IsDir():
			errs = append(errs, &errors.ConfigurationError{Field: field, Reason: fmt.Sprintf("%s is a directory", path)})
		}
	}

	switch kind {
	case resource.Build:
		mustExist("build.root", c.Build.Root, true)
	case resource.UserPool:
		if c.UserPool.TestUsers > 0 && c.UserPool.TestUserPassword == "" {
			errs = append(errs, &errors.ConfigurationError{Field: "user_pool.test_user_password", Reason: "password could not be resolved"})
		}
	case resource.LoginFunction:
		mustExist("functions.login.package", c.Functions.Login.Package, false)
	case resource.StartSessionFunction:
		mustExist("functions.start_session.package", c.Functions.StartSession.Package, false)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Function returns the function settings for a function kind.
func (c Config) Function(kind resource.Kind) (FunctionConfig, bool) {
	switch kind {
	case resource.LoginFunction:
		return c.Functions.Login, true
	case resource.StartSessionFunction:
		return c.Functions.StartSession, true
	}
	return FunctionConfig{}, false
}

// Name returns the provider-side name configured for kind.
func (c Config) Name(kind resource.Kind) string {
	switch kind {
	case resource.Build:
		return c.Build.Name
	case resource.Fleet:
		return c.Fleet.Name
	case resource.UserPool:
		return c.UserPool.Name
	case resource.LoginFunction:
		return c.Functions.Login.Name
	case resource.StartSessionFunction:
		return c.Functions.StartSession.Name
	case resource.RestApi:
		return c.RestApi.Name
	}
	return ""
}
