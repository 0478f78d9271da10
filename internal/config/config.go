// Package config resolves the immutable set of parameters used by a single
// invocation: built-in defaults, an optional YAML file, optional Parameter
// Store overrides, and finally command line flags.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Placeholder is replaced by the namespace in every name.
const Placeholder = "[prefix]"

// Config is resolved once per invocation and never mutated afterwards.
type Config struct {
	Namespace string          `yaml:"namespace"`
	Region    string          `yaml:"region"`
	Profile   string          `yaml:"profile"`
	Build     BuildConfig     `yaml:"build"`
	Fleet     FleetConfig     `yaml:"fleet"`
	UserPool  UserPoolConfig  `yaml:"user_pool"`
	Functions FunctionsConfig `yaml:"functions"`
	RestApi   RestApiConfig   `yaml:"rest_api"`
	State     StateConfig     `yaml:"state"`
	Polling   PollingConfig   `yaml:"polling"`
}

type BuildConfig struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	OperatingSystem string        `yaml:"os"`
	Root            string        `yaml:"root"`
	Timeout         time.Duration `yaml:"timeout"`
}

type FleetConfig struct {
	Name                string        `yaml:"name"`
	Description         string        `yaml:"description"`
	LaunchPath          string        `yaml:"launch_path"`
	LaunchParameters    string        `yaml:"launch_parameters"`
	InstanceType        string        `yaml:"instance_type"`
	Port                int           `yaml:"port"`
	ConcurrentProcesses int           `yaml:"concurrent_processes"`
	Timeout             time.Duration `yaml:"timeout"`
}

type UserPoolConfig struct {
	Name                   string `yaml:"name"`
	ClientName             string `yaml:"client_name"`
	DomainPrefix           string `yaml:"domain_prefix"`
	TestUsers              int    `yaml:"test_users"`
	TestUserPrefix         string `yaml:"test_user_prefix"`
	TestUserPassword       string `yaml:"test_user_password"`
	TestUserPasswordSecret string `yaml:"test_user_password_secret"`
}

type FunctionConfig struct {
	Name    string `yaml:"name"`
	Role    string `yaml:"role"`
	Package string `yaml:"package"`
}

type FunctionsConfig struct {
	Login        FunctionConfig `yaml:"login"`
	StartSession FunctionConfig `yaml:"start_session"`
	MemorySize   int            `yaml:"memory_size"`
	Timeout      time.Duration  `yaml:"timeout"`
}

type RestApiConfig struct {
	Name             string `yaml:"name"`
	StageName        string `yaml:"stage"`
	LoginPath        string `yaml:"login_path"`
	StartSessionPath string `yaml:"start_session_path"`
	AuthorizerName   string `yaml:"authorizer"`
}

// Supported state backends.
const (
	BackendFile     = "file"
	BackendDynamoDB = "dynamodb"
)

type StateConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Table   string `yaml:"table"`
}

type PollingConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// Defaults returns the built-in configuration. Names still carry the
// placeholder; call Resolve once the namespace is known.
func Defaults() Config {
	return Config{
		Namespace: "test1",
		Region:    "us-west-2",
		Build: BuildConfig{
			Name:            "[prefix]-build",
			Version:         "build0.42",
			OperatingSystem: "WINDOWS_2016",
			Root:            "build",
			Timeout:         20 * time.Minute,
		},
		Fleet: FleetConfig{
			Name:                "[prefix]-fleet",
			Description:         "[prefix] dedicated game server fleet",
			LaunchPath:          "C:/game/MyProject/Binaries/Win64/MyProjectServer.exe",
			LaunchParameters:    "-port=7777",
			InstanceType:        "c5.large",
			Port:                7777,
			ConcurrentProcesses: 1,
			Timeout:             45 * time.Minute,
		},
		UserPool: UserPoolConfig{
			Name:           "[prefix]-user-pool",
			ClientName:     "[prefix]-user-pool-login-client",
			DomainPrefix:   "[prefix]-login",
			TestUserPrefix: "user",
		},
		Functions: FunctionsConfig{
			Login: FunctionConfig{
				Name:    "[prefix]-lambda-login",
				Role:    "[prefix]-lambda-cognito-role",
				Package: "dist/login.zip",
			},
			StartSession: FunctionConfig{
				Name:    "[prefix]-lambda-start-session",
				Role:    "[prefix]-lambda-session-role",
				Package: "dist/start-session.zip",
			},
			MemorySize: 128,
			Timeout:    10 * time.Second,
		},
		RestApi: RestApiConfig{
			Name:             "[prefix]-rest-api",
			StageName:        "[prefix]-api-test-stage",
			LoginPath:        "login",
			StartSessionPath: "startsession",
			AuthorizerName:   "[prefix]-cognito-authorizer",
		},
		State: StateConfig{
			Backend: BackendFile,
			Dir:     ".gamelift-backend",
			Table:   "gamelift-backend--resources",
		},
		Polling: PollingConfig{
			InitialInterval: 2 * time.Second,
			MaxInterval:     time.Minute,
		},
	}
}

// Resolve returns a copy of c with every placeholder replaced by the namespace.
func (c Config) Resolve() Config {
	r := strings.NewReplacer(Placeholder, c.Namespace)
	sub := func(s *string) { *s = r.Replace(*s) }

	for _, s := range []*string{
		&c.Build.Name,
		&c.Build.Version,
		&c.Build.Root,
		&c.Fleet.Name,
		&c.Fleet.Description,
		&c.Fleet.LaunchParameters,
		&c.UserPool.Name,
		&c.UserPool.ClientName,
		&c.UserPool.DomainPrefix,
		&c.UserPool.TestUserPasswordSecret,
		&c.Functions.Login.Name,
		&c.Functions.Login.Role,
		&c.Functions.Login.Package,
		&c.Functions.StartSession.Name,
		&c.Functions.StartSession.Role,
		&c.Functions.StartSession.Package,
		&c.RestApi.Name,
		&c.RestApi.StageName,
		&c.RestApi.AuthorizerName,
		&c.State.Dir,
		&c.State.Table,
	} {
		sub(s)
	}
	return c
}

// TestUserNames returns the names of the test users to create.
func (c Config) TestUserNames() []string {
	names := make([]string, 0, c.UserPool.TestUsers)
	for i := 0; i < c.UserPool.TestUsers; i++ {
		names = append(names, c.UserPool.TestUserPrefix+strconv.Itoa(i))
	}
	return names
}
