// Package provider wraps the managed service APIs behind one driver per
// resource kind. Drivers look resources up by name before creating them, so a
// retry after an interrupted run adopts what the earlier run created.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/savaki/gamelift-backend/internal/config"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
)

const (
	OperationCreate = "create"
	OperationDelete = "delete"
)

// Input is everything a driver may read for one call.
type Input struct {
	Config config.Config
	// Record is the persisted record for the kind, nil when absent.
	Record *resource.Record
	// Prerequisites holds the Active records the kind depends on.
	Prerequisites resource.Snapshot
}

func (in Input) prerequisite(kind resource.Kind, key string) (string, error) {
	v := in.Prerequisites[kind].ID(key)
	if v == "" {
		return "", fmt.Errorf("%w: %s %s", errors.ErrMissingIdentity, kind, key)
	}
	return v, nil
}

// Driver creates and deletes one kind of resource.
type Driver interface {
	// Create returns the provider identifiers of the ready resource.
	Create(ctx context.Context, in Input) (map[string]string, error)
	// Delete returns once the resource is confirmed gone.
	Delete(ctx context.Context, in Input) error
}

// Client is the resource client used by the orchestrator.
type Client interface {
	Create(ctx context.Context, kind resource.Kind, in Input) (map[string]string, error)
	Delete(ctx context.Context, kind resource.Kind, in Input) error
}

// Registry dispatches to per-kind drivers and classifies their errors.
type Registry struct {
	drivers map[resource.Kind]Driver
}

func NewRegistry(drivers map[resource.Kind]Driver) *Registry {
	return &Registry{drivers: drivers}
}

func (r *Registry) driver(kind resource.Kind) (Driver, error) {
	d, ok := r.drivers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no driver for %s", errors.ErrUnknownKind, kind)
	}
	return d, nil
}

func (r *Registry) Create(ctx context.Context, kind resource.Kind, in Input) (map[string]string, error) {
	d, err := r.driver(kind)
	if err != nil {
		return nil, err
	}
	// identifiers gathered before a failure are returned so they can be recorded
	ids, err := d.Create(ctx, in)
	if err != nil {
		return ids, errors.Classify(kind.String(), OperationCreate, err)
	}
	return ids, nil
}

func (r *Registry) Delete(ctx context.Context, kind resource.Kind, in Input) error {
	d, err := r.driver(kind)
	if err != nil {
		return err
	}
	if err := d.Delete(ctx, in); err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return errors.Classify(kind.String(), OperationDelete, err)
	}
	return nil
}

// Backoff bounds a polling or retry loop.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Timeout time.Duration
}

func backoff(cfg config.Config, timeout time.Duration) Backoff {
	return Backoff{
		Initial: cfg.Polling.InitialInterval,
		Max:     cfg.Polling.MaxInterval,
		Timeout: timeout,
	}
}

func (b Backoff) next(delay time.Duration) time.Duration {
	if delay <= 0 {
		delay = b.Initial
	} else {
		delay *= 2
	}
	if delay <= 0 {
		delay = time.Second
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Check reports whether a long-running operation has reached its goal. state
// is recorded as the last observed state if the poll times out.
type Check func(ctx context.Context) (done bool, state string, err error)

// Poll calls check with exponential backoff until it is done, fails, or
// b.Timeout elapses. Throttling errors are retried.
func Poll(ctx context.Context, b Backoff, kind resource.Kind, operation string, check Check) error {
	started := time.Now()
	var (
		delay     time.Duration
		lastState string
	)
	for {
		done, state, err := check(ctx)
		switch {
		case err != nil && !errors.IsThrottled(err):
			return err
		case err == nil && done:
			return nil
		case state != "":
			lastState = state
		}

		delay = b.next(delay)
		if b.Timeout > 0 && time.Since(started)+delay > b.Timeout {
			return &errors.ProviderTimeoutError{
				Kind:      kind.String(),
				Operation: operation,
				Waited:    time.Since(started).Round(time.Second).String(),
				LastState: lastState,
			}
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Retry calls fn until it succeeds, returns an error retryable rejects, or
// b.Timeout elapses, in which case the last error is returned.
func Retry(ctx context.Context, b Backoff, retryable func(error) bool, fn func(ctx context.Context) error) error {
	started := time.Now()
	var delay time.Duration
	for {
		err := fn(ctx)
		if err == nil || !retryable(err) {
			return err
		}

		delay = b.next(delay)
		if b.Timeout > 0 && time.Since(started)+delay > b.Timeout {
			return err
		}
		if serr := sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}
