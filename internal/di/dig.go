// Package di assembles the backend from its constructors with uber's dig.
// Commands build one container per invocation and pull the pieces they need
// with Get or MustGet.
package di

import (
	"context"

	"go.uber.org/dig"
)

// Container is the subset of *dig.Container the commands use.
type Container interface {
	Invoke(function any, opts ...dig.InvokeOption) error
	Provide(constructor any, opts ...dig.ProvideOption) error
	Scope(name string, opts ...dig.ScopeOption) *dig.Scope
}

// MustGet resolves a T from container and panics if it cannot.
//
//	orch := MustGet[*orchestrator.Orchestrator](container)
func MustGet[T any](container Container) T {
	got, err := Get[T](container)
	if err != nil {
		panic(err)
	}
	return got
}

// Get is MustGet for callers that report the error instead of panicking.
func Get[T any](container Container) (want T, err error) {
	err = container.Invoke(func(got T) {
		want = got
	})
	return want, err
}

// New creates a new dependency injection container for one invocation.
// The bootstrap settings are registered so constructors can take them as a
// regular parameter.
//
// Example:
//
//	container, err := New(Bootstrap{File: "backend.yaml"},
//	    WithProviders(
//	        func() provider.Client { return fake },
//	    ),
//	)
func New(b Bootstrap, opts ...Option) (Container, error) {
	o := options{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}

	container := dig.New()
	if err := container.Provide(func() Bootstrap { return b }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() context.Context { return o.ctx }); err != nil {
		return nil, err
	}

	for _, provider := range core {
		if o.replaced(provider) {
			continue
		}
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	for _, provider := range o.providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}

var core = []any{
	ProvideAWSConfig,
	ProvideSSMClient,
	ProvideSecretsClient,
	ProvideParameterStore,
	ProvideConfig,
	ProvideDynamoDB,
	ProvideResourceDAO,
	ProvideStore,
	ProvideClients,
	ProvideResourceClient,
	ProvideAccessChecker,
	ProvideValidator,
	ProvideGraph,
	ProvideOrchestrator,
}
