package graph

import (
	"fmt"

	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
)

// Action is what the orchestrator should do with one kind.
type Action string

const (
	ActionCreate      Action = "create"
	ActionDelete      Action = "delete"
	ActionSkipPresent Action = "skip-present"
	ActionSkipAbsent  Action = "skip-absent"
)

// Step is one entry of a plan.
type Step struct {
	Kind   resource.Kind
	Action Action
}

// Plan is an ordered sequence of steps.
type Plan []Step

// Kinds returns the kinds of every step carrying one of the given actions, or
// of every step when no action is given.
func (p Plan) Kinds(actions ...Action) []resource.Kind {
	var out []resource.Kind
	for _, step := range p {
		if len(actions) == 0 || hasAction(actions, step.Action) {
			out = append(out, step.Kind)
		}
	}
	return out
}

func hasAction(actions []Action, a Action) bool {
	for _, candidate := range actions {
		if candidate == a {
			return true
		}
	}
	return false
}

// PlanCreate returns the targets and all their transitive prerequisites in
// topological order. Active kinds are skipped. A prerequisite that is Failed
// or Pending and is not itself a target yields DependencyUnsatisfied; targets
// in those states are retried.
func (g *Graph) PlanCreate(snapshot resource.Snapshot, targets ...resource.Kind) (Plan, error) {
	if err := g.checkTargets(targets); err != nil {
		return nil, err
	}

	isTarget := make(map[resource.Kind]bool, len(targets))
	include := make(map[resource.Kind]bool)
	for _, t := range targets {
		isTarget[t] = true
		include[t] = true
		for _, a := range g.Ancestors(t) {
			include[a] = true
		}
	}

	var plan Plan
	for _, k := range g.inTopoOrder(include) {
		switch status := snapshot.Status(k); {
		case status == resource.StatusActive:
			plan = append(plan, Step{Kind: k, Action: ActionSkipPresent})
		case status == "" || status == resource.StatusDeleted || isTarget[k]:
			plan = append(plan, Step{Kind: k, Action: ActionCreate})
		default:
			return nil, &errors.DependencyUnsatisfiedError{
				Kind:         string(g.firstDependentTarget(k, targets)),
				Prerequisite: k.String(),
				Status:       status.String(),
			}
		}
	}
	return plan, nil
}

// PlanDelete returns the targets and all their transitive dependents in
// reverse topological order. Absent kinds are skipped.
func (g *Graph) PlanDelete(snapshot resource.Snapshot, targets ...resource.Kind) (Plan, error) {
	if err := g.checkTargets(targets); err != nil {
		return nil, err
	}

	include := make(map[resource.Kind]bool)
	for _, t := range targets {
		include[t] = true
		for _, d := range g.Descendants(t) {
			include[d] = true
		}
	}

	ordered := g.inTopoOrder(include)
	plan := make(Plan, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		k := ordered[i]
		if snapshot.Present(k) && snapshot.Status(k) != resource.StatusDeleted {
			plan = append(plan, Step{Kind: k, Action: ActionDelete})
		} else {
			plan = append(plan, Step{Kind: k, Action: ActionSkipAbsent})
		}
	}
	return plan, nil
}

// PlanDeleteAll returns every kind in reverse topological order.
func (g *Graph) PlanDeleteAll(snapshot resource.Snapshot) (Plan, error) {
	return g.PlanDelete(snapshot, g.topo...)
}

// CheckInvariant verifies that every Active kind has all of its prerequisites
// Active too.
func (g *Graph) CheckInvariant(namespace string, snapshot resource.Snapshot) error {
	for _, k := range g.topo {
		if snapshot.Status(k) != resource.StatusActive {
			continue
		}
		for _, prereq := range g.prerequisites[k] {
			if status := snapshot.Status(prereq); status != resource.StatusActive {
				if status == "" {
					status = "absent"
				}
				return &errors.StateCorruptionError{
					Namespace: namespace,
					Kind:      k.String(),
					Reason:    fmt.Sprintf("Active while prerequisite %s is %s", prereq, status),
				}
			}
		}
	}
	for k, r := range snapshot {
		if !g.Contains(k) {
			return &errors.StateCorruptionError{Namespace: namespace, Kind: k.String(), Reason: "unknown kind"}
		}
		if r != nil && r.Kind != k {
			return &errors.StateCorruptionError{Namespace: namespace, Kind: k.String(), Reason: fmt.Sprintf("record is stored as %s", r.Kind)}
		}
	}
	return nil
}

func (g *Graph) checkTargets(targets []resource.Kind) error {
	if len(targets) == 0 {
		return fmt.Errorf("%w: no target", errors.ErrUnknownKind)
	}
	for _, t := range targets {
		if !g.Contains(t) {
			return fmt.Errorf("%w: %s", errors.ErrUnknownKind, t)
		}
	}
	return nil
}

// firstDependentTarget names the requested target that needs k.
func (g *Graph) firstDependentTarget(k resource.Kind, targets []resource.Kind) resource.Kind {
	for _, t := range targets {
		for _, a := range g.Ancestors(t) {
			if a == k {
				return t
			}
		}
	}
	return k
}
