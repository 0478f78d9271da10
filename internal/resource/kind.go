// Package resource defines the six managed resource kinds, their persisted
// records, and the per-kind outcomes reported by the orchestrator.
package resource

import (
	"fmt"
	"strings"

	"github.com/savaki/gamelift-backend/internal/errors"
)

// Kind identifies one managed resource in the backend.
type Kind string

const (
	Build                Kind = "Build"
	Fleet                Kind = "Fleet"
	UserPool             Kind = "UserPool"
	LoginFunction        Kind = "LoginFunction"
	StartSessionFunction Kind = "StartSessionFunction"
	RestApi              Kind = "RestApi"
)

// Kinds lists every kind in declaration order. Topological ties are broken by
// this order so that plans are deterministic.
var Kinds = []Kind{
	Build,
	Fleet,
	UserPool,
	LoginFunction,
	StartSessionFunction,
	RestApi,
}

var cliNames = map[Kind]string{
	Build:                "build",
	Fleet:                "fleet",
	UserPool:             "user-pool",
	LoginFunction:        "login-function",
	StartSessionFunction: "start-session-function",
	RestApi:              "rest-api",
}

var aliases = map[string][]Kind{
	"user_pool":              {UserPool},
	"userpool":               {UserPool},
	"login_function":         {LoginFunction},
	"start_session_function": {StartSessionFunction},
	"rest_api":               {RestApi},
	"restapi":                {RestApi},
	"api":                    {RestApi},
	"lambdas":                {LoginFunction, StartSessionFunction},
	"functions":              {LoginFunction, StartSessionFunction},
}

func (k Kind) String() string {
	return string(k)
}

// CLIName returns the lower-case, dash separated name used on the command line.
func (k Kind) CLIName() string {
	if name, ok := cliNames[k]; ok {
		return name
	}
	return strings.ToLower(string(k))
}

// Valid reports whether k is one of the six known kinds.
func (k Kind) Valid() bool {
	_, ok := cliNames[k]
	return ok
}

// Index returns the declaration position of k, or -1 if k is unknown.
func (k Kind) Index() int {
	for i, kind := range Kinds {
		if kind == k {
			return i
		}
	}
	return -1
}

// ParseKind resolves a command line or persisted name to a kind.
func ParseKind(s string) (Kind, error) {
	kinds, err := ParseKinds(s)
	if err != nil {
		return "", err
	}
	if len(kinds) != 1 {
		return "", fmt.Errorf("%w: %s names more than one kind", errors.ErrUnknownKind, s)
	}
	return kinds[0], nil
}

// ParseKinds resolves a name that may stand for several kinds, such as
// "lambdas".
func ParseKinds(s string) ([]Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, kind := range Kinds {
		if name == strings.ToLower(string(kind)) || name == cliNames[kind] {
			return []Kind{kind}, nil
		}
	}
	if kinds, ok := aliases[name]; ok {
		return kinds, nil
	}
	return nil, fmt.Errorf("%w: %q (want one of %s)", errors.ErrUnknownKind, s, strings.Join(CLINames(), ", "))
}

// CLINames lists the command line names in declaration order.
func CLINames() []string {
	names := make([]string, 0, len(Kinds))
	for _, kind := range Kinds {
		names = append(names, kind.CLIName())
	}
	return names
}
