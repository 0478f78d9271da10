package di

import (
	"context"
	"reflect"
)

// Bootstrap is what the command line knows before the configuration is
// resolved.
type Bootstrap struct {
	// File is an optional YAML configuration file.
	File string
	// Overrides are key=value settings from flags and environment variables.
	Overrides map[string]string
	// UseSSM reads overrides from Parameter Store instead of the environment.
	UseSSM bool
}

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithContext sets the context handed to constructors. It should carry the
// logger.
func WithContext(ctx context.Context) Option {
	return func(opts *options) {
		opts.ctx = ctx
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    func() *Database { return &Database{} },
//	    func(db *Database) *Service { return &Service{DB: db} },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	ctx       context.Context
	providers []any
}

// replaced reports whether a caller supplied provider returns the same first
// type as the core provider, in which case the caller's wins.
func (o options) replaced(core any) bool {
	want := reflect.TypeOf(core)
	if want.NumOut() == 0 {
		return false
	}
	for _, p := range o.providers {
		got := reflect.TypeOf(p)
		if got.Kind() == reflect.Func && got.NumOut() > 0 && got.Out(0) == want.Out(0) {
			return true
		}
	}
	return false
}
