// Package orchestrator drives create and delete plans against the resource
// client, recording every step in the state store.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/config"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/graph"
	"github.com/savaki/gamelift-backend/internal/provider"
	"github.com/savaki/gamelift-backend/internal/resource"
	"github.com/savaki/gamelift-backend/internal/state"
	"github.com/savaki/gox/slicex"
	"github.com/segmentio/ksuid"
)

// Validator rejects configurations the provider is known to refuse.
type Validator interface {
	Validate(ctx context.Context, cfg config.Config) error
}

// Orchestrator executes one command at a time. Operators serialize
// invocations against a namespace.
type Orchestrator struct {
	graph     *graph.Graph
	store     state.Store
	client    provider.Client
	cfg       config.Config
	validator Validator
	now       func() time.Time
}

type Option func(*Orchestrator)

// WithValidator adds a policy check run before any create.
func WithValidator(v Validator) Option {
	return func(o *Orchestrator) {
		o.validator = v
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func New(g *graph.Graph, store state.Store, client provider.Client, cfg config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		graph:  g,
		store:  store,
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Config() config.Config {
	return o.cfg
}

// run prepares the result and a logger carrying the run id.
func (o *Orchestrator) run(ctx context.Context, op resource.Operation, target string) (context.Context, *resource.Result, zerolog.Logger) {
	result := &resource.Result{
		Namespace: o.cfg.Namespace,
		Operation: op,
		Target:    target,
		RunID:     ksuid.New().String(),
	}
	logger := zerolog.Ctx(ctx).With().
		Str("run_id", result.RunID).
		Str("namespace", o.cfg.Namespace).
		Str("operation", string(op)).
		Logger()
	ctx = context.WithValue(ctx, runIDKey{}, result.RunID)
	return logger.WithContext(ctx), result, logger
}

func targetName(targets []resource.Kind) string {
	return strings.Join(slicex.Map(targets, resource.Kind.CLIName), ",")
}

// snapshot loads the namespace and refuses to continue on a corrupt state.
func (o *Orchestrator) snapshot(ctx context.Context) (resource.Snapshot, error) {
	snapshot, err := state.Load(ctx, o.store, o.cfg.Namespace)
	if err != nil {
		return nil, err
	}
	if err := o.graph.CheckInvariant(o.cfg.Namespace, snapshot); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

func (o *Orchestrator) prerequisites(kind resource.Kind, snapshot resource.Snapshot) resource.Snapshot {
	prereqs := resource.Snapshot{}
	for _, k := range o.graph.Prerequisites(kind) {
		if r, ok := snapshot[k]; ok {
			prereqs[k] = r.Clone()
		}
	}
	return prereqs
}

// preflight reports every configuration problem of the kinds about to be
// created before any provider call is made.
func (o *Orchestrator) preflight(ctx context.Context, kinds []resource.Kind) error {
	if len(kinds) == 0 {
		return nil
	}

	var errs errors.ConfigurationErrors
	for _, kind := range kinds {
		err := o.cfg.ValidateKind(kind)
		var list errors.ConfigurationErrors
		if errors.As(err, &list) {
			errs = append(errs, list...)
		} else if err != nil {
			return err
		}
	}
	if len(errs) > 0 {
		return errs
	}

	if o.validator != nil {
		return o.validator.Validate(ctx, o.cfg)
	}
	return nil
}

// Create brings every target, and every prerequisite not yet Active, to
// Active in dependency order. It halts at the first failure.
func (o *Orchestrator) Create(ctx context.Context, targets ...resource.Kind) (*resource.Result, error) {
	ctx, result, logger := o.run(ctx, resource.OperationCreate, targetName(targets))

	snapshot, err := o.snapshot(ctx)
	if err != nil {
		return result, err
	}

	plan, err := o.graph.PlanCreate(snapshot, targets...)
	if err != nil {
		return result, err
	}
	if err := o.preflight(ctx, plan.Kinds(graph.ActionCreate)); err != nil {
		return result, err
	}

	logger.Info().Strs("plan", slicex.Map(plan.Kinds(graph.ActionCreate), resource.Kind.String)).Msg("starting create")

	for i, step := range plan {
		if step.Action == graph.ActionSkipPresent {
			record := snapshot[step.Kind]
			result.Outcomes = append(result.Outcomes, resource.Outcome{
				Kind:        step.Kind,
				Name:        record.Name,
				Type:        resource.OutcomeSkippedPresent,
				Identifiers: record.Identifiers,
			})
			logger.Info().Str("kind", step.Kind.String()).Str("name", record.Name).Msg("already active")
			continue
		}

		outcome, err := o.create(ctx, step.Kind, snapshot)
		result.Outcomes = append(result.Outcomes, outcome)
		if err != nil {
			result.Outcomes = append(result.Outcomes, notAttempted(plan[i+1:])...)
			return result, err
		}
	}

	logger.Info().Msg("create complete")
	return result, nil
}

// CreateAll creates every kind, retrying any that previously failed.
func (o *Orchestrator) CreateAll(ctx context.Context) (*resource.Result, error) {
	return o.Create(ctx, o.graph.TopoOrder()...)
}

func (o *Orchestrator) create(ctx context.Context, kind resource.Kind, snapshot resource.Snapshot) (resource.Outcome, error) {
	name := o.cfg.Name(kind)
	logger := zerolog.Ctx(ctx).With().Str("kind", kind.String()).Str("name", name).Logger()
	ctx = logger.WithContext(ctx)

	prior := snapshot[kind].Clone()
	now := o.now()
	record := &resource.Record{
		Namespace: o.cfg.Namespace,
		Kind:      kind,
		Name:      name,
		Status:    resource.StatusPending,
		RunID:     runID(ctx),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prior != nil {
		// identifiers of an earlier attempt let the driver find what it created
		record.Identifiers = prior.Clone().Identifiers
		record.CreatedAt = prior.CreatedAt
	}

	outcome := resource.Outcome{Kind: kind, Name: name}

	if err := o.store.Put(ctx, record); err != nil {
		outcome.Type = resource.OutcomeFailed
		outcome.Err = err
		outcome.Cause = err.Error()
		return outcome, err
	}
	logger.Info().Msg("creating")

	ids, err := o.client.Create(ctx, kind, provider.Input{
		Config:        o.cfg,
		Record:        prior,
		Prerequisites: o.prerequisites(kind, snapshot),
	})

	record = record.Clone()
	record.UpdatedAt = o.now()
	if len(ids) > 0 {
		if record.Identifiers == nil {
			record.Identifiers = map[string]string{}
		}
		for k, v := range ids {
			record.Identifiers[k] = v
		}
	}

	if err != nil {
		prevStatus := record.Status
		record.Status = resource.StatusFailed
		record.Error = err.Error()
		record.ErrorCode = code(err)
		if perr := o.store.Put(ctx, record); perr != nil {
			logger.Error().Err(perr).Msg("unable to record failure")
			err = errors.Join(err, fmt.Errorf("state still reads %s: %w", prevStatus, perr))
		}
		snapshot[kind] = record

		outcome.Type = resource.OutcomeFailed
		outcome.Identifiers = record.Identifiers
		outcome.Err = err
		outcome.Cause = err.Error()
		logger.Error().Err(err).Str("error_code", record.ErrorCode).Str("outcome", string(outcome.Type)).Msg("create failed")
		return outcome, err
	}

	record.Status = resource.StatusActive
	record.Identifiers = ids
	record.Error = ""
	record.ErrorCode = ""
	if err := o.store.Put(ctx, record); err != nil {
		outcome.Type = resource.OutcomeFailed
		outcome.Err = err
		outcome.Cause = err.Error()
		return outcome, err
	}
	snapshot[kind] = record

	outcome.Type = resource.OutcomeActive
	outcome.Identifiers = ids
	logger.Info().Str("outcome", string(outcome.Type)).Interface("identifiers", ids).Msg("created")
	return outcome, nil
}

// Delete removes every target and everything that depends on it, dependents
// first. It halts at the first failure.
func (o *Orchestrator) Delete(ctx context.Context, targets ...resource.Kind) (*resource.Result, error) {
	ctx, result, _ := o.run(ctx, resource.OperationDelete, targetName(targets))

	snapshot, err := o.snapshot(ctx)
	if err != nil {
		return result, err
	}
	plan, err := o.graph.PlanDelete(snapshot, targets...)
	if err != nil {
		return result, err
	}
	return o.delete(ctx, result, plan, snapshot)
}

// DeleteAll removes every present kind in reverse dependency order.
func (o *Orchestrator) DeleteAll(ctx context.Context) (*resource.Result, error) {
	ctx, result, _ := o.run(ctx, resource.OperationDeleteAll, "all")

	snapshot, err := o.snapshot(ctx)
	if err != nil {
		return result, err
	}
	plan, err := o.graph.PlanDeleteAll(snapshot)
	if err != nil {
		return result, err
	}
	return o.delete(ctx, result, plan, snapshot)
}

func (o *Orchestrator) delete(ctx context.Context, result *resource.Result, plan graph.Plan, snapshot resource.Snapshot) (*resource.Result, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Strs("plan", slicex.Map(plan.Kinds(graph.ActionDelete), resource.Kind.String)).Msg("starting delete")

	for i, step := range plan {
		name := o.cfg.Name(step.Kind)
		if step.Action == graph.ActionSkipAbsent {
			result.Outcomes = append(result.Outcomes, resource.Outcome{
				Kind: step.Kind,
				Name: name,
				Type: resource.OutcomeSkippedAbsent,
			})
			logger.Debug().Str("kind", step.Kind.String()).Msg("already absent")
			continue
		}

		outcome, err := o.deleteOne(ctx, step.Kind, snapshot)
		result.Outcomes = append(result.Outcomes, outcome)
		if err != nil {
			result.Outcomes = append(result.Outcomes, notAttempted(plan[i+1:])...)
			return result, err
		}
	}

	logger.Info().Msg("delete complete")
	return result, nil
}

func (o *Orchestrator) deleteOne(ctx context.Context, kind resource.Kind, snapshot resource.Snapshot) (resource.Outcome, error) {
	record := snapshot[kind].Clone()
	name := record.Name
	if name == "" {
		name = o.cfg.Name(kind)
	}
	logger := zerolog.Ctx(ctx).With().Str("kind", kind.String()).Str("name", name).Logger()
	ctx = logger.WithContext(ctx)

	outcome := resource.Outcome{Kind: kind, Name: name, Identifiers: record.Identifiers}
	logger.Info().Msg("deleting")

	err := o.client.Delete(ctx, kind, provider.Input{
		Config:        o.cfg,
		Record:        record,
		Prerequisites: o.prerequisites(kind, snapshot),
	})
	if err != nil {
		prevStatus := record.Status
		record.Status = resource.StatusFailed
		record.Error = err.Error()
		record.ErrorCode = code(err)
		record.RunID = runID(ctx)
		record.UpdatedAt = o.now()
		if perr := o.store.Put(ctx, record); perr != nil {
			logger.Error().Err(perr).Msg("unable to record failure")
			err = errors.Join(err, fmt.Errorf("state still reads %s: %w", prevStatus, perr))
		}
		snapshot[kind] = record

		outcome.Type = resource.OutcomeFailed
		outcome.Err = err
		outcome.Cause = err.Error()
		logger.Error().Err(err).Str("error_code", record.ErrorCode).Msg("delete failed")
		return outcome, err
	}

	if err := o.store.Remove(ctx, o.cfg.Namespace, kind); err != nil {
		outcome.Type = resource.OutcomeFailed
		outcome.Err = err
		outcome.Cause = err.Error()
		return outcome, err
	}
	delete(snapshot, kind)

	outcome.Type = resource.OutcomeDeleted
	logger.Info().Str("outcome", string(outcome.Type)).Msg("deleted")
	return outcome, nil
}

// Status returns the records of the namespace. A snapshot that violates the
// dependency invariant is returned together with the StateCorruptionError.
func (o *Orchestrator) Status(ctx context.Context) (resource.Snapshot, error) {
	return o.snapshot(ctx)
}

func notAttempted(steps graph.Plan) []resource.Outcome {
	var out []resource.Outcome
	for _, step := range steps {
		out = append(out, resource.Outcome{Kind: step.Kind, Type: resource.OutcomeNotAttempted})
	}
	return out
}

type runIDKey struct{}

func runID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey{}).(string)
	return v
}

// code returns the classification stored on a Failed record.
func code(err error) string {
	var (
		pe         *errors.ProviderError
		timeout    *errors.ProviderTimeoutError
		dependency *errors.DependencyUnsatisfiedError
		cfg        *errors.ConfigurationError
		corruption *errors.StateCorruptionError
	)
	switch {
	case errors.As(err, &timeout):
		return "ProviderTimeout"
	case errors.As(err, &pe):
		if pe.Code != "" {
			return pe.Code
		}
		return "ProviderError"
	case errors.As(err, &dependency):
		return "DependencyUnsatisfied"
	case errors.As(err, &cfg):
		return "ConfigurationError"
	case errors.As(err, &corruption):
		return "StateCorruption"
	}
	return "Error"
}
