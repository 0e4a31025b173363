// Package scheduler drains the durable change log and turns each change
// into its downstream effects: a graph invocation becomes a task against
// the graph's StartFn, and a completed task's produced content fans out
// into new tasks along the graph's static edges, with dynamic routers
// resolved against the completing content's own recorded routing
// decision. The Scheduler also drives allocation of the resulting
// unassigned tasks on every tick, since executor availability changes
// independently of the change log (heartbeats are not logged events).
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/allocator"
	"github.com/vertexflow/coordinator/changelog"
	"github.com/vertexflow/coordinator/statemachine"
	"github.com/vertexflow/coordinator/store"
)

// Config holds the Scheduler's dependencies.
type Config struct {
	// Store is the State Store (required).
	Store store.Store

	// Machine applies derived tasks back to the store (required).
	Machine *statemachine.Machine

	// Allocator assigns unassigned tasks to executors on every tick.
	// Defaults to allocator.New(allocator.Config{}) (LeastLoaded).
	Allocator *allocator.Allocator

	// PollInterval is the interval between drain/allocate ticks.
	// Defaults to 2s.
	PollInterval time.Duration

	// ScanLimit bounds each drain batch. Defaults to
	// changelog.DefaultScanLimit.
	ScanLimit int

	// Logger is for observability (optional).
	Logger coordinator.Logger
}

// Scheduler drains the change log and drives task allocation.
type Scheduler struct {
	cfg Config
	log *changelog.Reader

	// graphCache avoids a store round trip per task for the common case
	// of many tasks against the same graph in one drain batch. It is
	// rebuilt from scratch on every tick, so a graph edit is visible
	// within one PollInterval.
	graphCache map[string]coordinator.ComputeGraph
}

// New creates a Scheduler, applying defaults for zero-value Config
// fields.
func New(cfg Config) *Scheduler {
	if cfg.Allocator == nil {
		cfg.Allocator = allocator.New(allocator.Config{})
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ScanLimit == 0 {
		cfg.ScanLimit = changelog.DefaultScanLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = coordinator.NewNoopLogger()
	}
	return &Scheduler{cfg: cfg, log: changelog.New(cfg.Store)}
}

// Run drains the change log and allocates pending tasks once per
// PollInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.cfg.Logger.Error(ctx, "scheduler tick failed", "error", err)
			}
		}
	}
}

// Tick performs one drain-and-allocate cycle. Exported so callers (and
// tests) can drive the Scheduler synchronously instead of through Run's
// ticker loop.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.graphCache = make(map[string]coordinator.ComputeGraph)

	if err := s.drain(ctx); err != nil {
		return fmt.Errorf("scheduler: tick: %w", err)
	}
	if err := s.allocate(ctx); err != nil {
		return fmt.Errorf("scheduler: tick: %w", err)
	}
	return nil
}

func (s *Scheduler) drain(ctx context.Context) error {
	cursor, err := s.log.SchedulerCursor(ctx)
	if err != nil {
		return err
	}

	for {
		page, err := s.log.Drain(ctx, cursor, s.cfg.ScanLimit)
		if err != nil {
			return err
		}
		if len(page.Items) == 0 {
			return nil
		}

		for _, sc := range page.Items {
			derivationErr := s.apply(ctx, sc)
			if err := s.log.MarkProcessed(ctx, sc.ID, derivationErr); err != nil {
				return err
			}
			cursor = sc.ID
			if err := s.log.AdvanceSchedulerCursor(ctx, cursor); err != nil {
				return err
			}
		}

		if page.NextCursor == "" {
			return nil
		}
	}
}

// apply derives the effects of one StateChange. It returns a non-empty
// string describing a derivation error rather than a Go error: a change
// this Scheduler cannot fully act on (a dangling router target, a graph
// edited out from under an in-flight task) still counts as processed, so
// the cursor keeps moving instead of wedging on one bad change forever.
func (s *Scheduler) apply(ctx context.Context, sc coordinator.StateChange) string {
	switch sc.Kind {
	case coordinator.StateChangeInvokeComputeGraph:
		payload, ok := sc.Payload.(coordinator.InvokeComputeGraphPayload)
		if !ok {
			return fmt.Sprintf("unexpected payload type for InvokeComputeGraph: %T", sc.Payload)
		}
		return s.applyInvoke(ctx, sc.ID, payload)

	case coordinator.StateChangeTaskCompleted:
		payload, ok := sc.Payload.(coordinator.TaskCompletedPayload)
		if !ok {
			return fmt.Sprintf("unexpected payload type for TaskCompleted: %T", sc.Payload)
		}
		return s.applyTaskCompleted(ctx, sc.ID, payload)

	default:
		return ""
	}
}

func (s *Scheduler) applyInvoke(ctx context.Context, causeID uint64, p coordinator.InvokeComputeGraphPayload) string {
	g, err := s.graph(ctx, p.Namespace, p.GraphName)
	if err != nil {
		return err.Error()
	}
	if g.Tombstoned {
		return fmt.Sprintf("graph %s/%s is tombstoned", p.Namespace, p.GraphName)
	}

	task := coordinator.Task{
		Namespace:      p.Namespace,
		GraphName:      p.GraphName,
		ComputeFnName:  g.StartFn,
		InputContentID: p.ContentID,
	}
	if _, err := s.cfg.Machine.CreateTasks(ctx, []coordinator.Task{task}, causeID); err != nil {
		return err.Error()
	}
	return ""
}

func (s *Scheduler) applyTaskCompleted(ctx context.Context, causeID uint64, p coordinator.TaskCompletedPayload) string {
	if p.Outcome != coordinator.TaskOutcomeSuccess {
		return ""
	}

	task, err := s.cfg.Store.GetTask(ctx, p.TaskID)
	if err != nil {
		return fmt.Sprintf("load completed task %s: %v", p.TaskID, err)
	}

	g, err := s.graph(ctx, task.Namespace, task.GraphName)
	if err != nil {
		return err.Error()
	}

	children, err := s.cfg.Store.ListContentByParent(ctx, task.Namespace, task.InputContentID)
	if err != nil {
		return fmt.Sprintf("list produced content for task %s: %v", p.TaskID, err)
	}
	produced := make([]coordinator.Content, 0, len(children))
	for _, c := range children {
		if c.SourceFn == task.ComputeFnName {
			produced = append(produced, c)
		}
	}
	if len(produced) == 0 {
		return ""
	}

	targets, warning := resolveTargets(g, task.ComputeFnName, produced)

	newTasks := make([]coordinator.Task, 0, len(targets)*len(produced))
	for _, fnName := range targets {
		for _, c := range produced {
			newTasks = append(newTasks, coordinator.Task{
				Namespace:      task.Namespace,
				GraphName:      task.GraphName,
				ComputeFnName:  fnName,
				InputContentID: c.ID,
			})
		}
	}
	if len(newTasks) > 0 {
		if _, err := s.cfg.Machine.CreateTasks(ctx, newTasks, causeID); err != nil {
			return err.Error()
		}
	}
	return warning
}

// resolveTargets returns the compute-node names to dispatch next from
// sourceFn's static edges, resolving any router edge against the routing
// decision recorded on the produced content's Labels. Targets naming a
// function not present in the graph, or a router activating a target
// outside its own declared TargetFunctions, are dropped with a warning
// rather than failing the whole derivation.
func resolveTargets(g coordinator.ComputeGraph, sourceFn string, produced []coordinator.Content) ([]string, string) {
	var warning string
	var out []string
	seen := map[string]struct{}{}

	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, edge := range g.Edges[sourceFn] {
		node, ok := g.Nodes[edge]
		if !ok {
			warning = fmt.Sprintf("edge target %q not among graph nodes", edge)
			continue
		}
		switch node.Kind {
		case coordinator.NodeKindCompute:
			add(edge)
		case coordinator.NodeKindRouter:
			activated, w := activatedRouterTargets(node.Router, produced)
			if w != "" {
				warning = w
			}
			for _, t := range activated {
				add(t)
			}
		}
	}
	return out, warning
}

// activatedRouterTargets reads the routing decision off the first
// produced content item that carries one (all items from one task
// completion share the same upstream routing decision in practice), and
// intersects it with the router's declared TargetFunctions.
func activatedRouterTargets(r coordinator.DynamicEdgeRouter, produced []coordinator.Content) ([]string, string) {
	declared := make(map[string]struct{}, len(r.TargetFunctions))
	for _, t := range r.TargetFunctions {
		declared[t] = struct{}{}
	}

	var chosen []string
	var warning string
	for _, c := range produced {
		raw, ok := c.Labels[coordinator.RouteLabel]
		if !ok {
			continue
		}
		for _, name := range routeLabelNames(raw) {
			if _, ok := declared[name]; !ok {
				warning = fmt.Sprintf("router %q activated undeclared target %q", r.Name, name)
				continue
			}
			chosen = append(chosen, name)
		}
		break
	}
	return chosen, warning
}

// routeLabelNames normalizes a RouteLabel value to a []string. Store
// backends that JSON round-trip Content.Labels (every SQL backend) hand
// back []any; store/memory hands back whatever Go value CompleteTask put
// in, which is always []any too (see statemachine.CompleteTask), but a
// []string is accepted as well so this stays correct regardless of how a
// label value was constructed.
func routeLabelNames(raw any) []string {
	switch v := raw.(type) {
	case []any:
		names := make([]string, 0, len(v))
		for _, n := range v {
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
		return names
	case []string:
		return v
	default:
		return nil
	}
}

func (s *Scheduler) graph(ctx context.Context, namespace, name string) (coordinator.ComputeGraph, error) {
	key := namespace + "/" + name
	if g, ok := s.graphCache[key]; ok {
		return g, nil
	}
	g, err := s.cfg.Store.GetGraph(ctx, namespace, name)
	if err != nil {
		return coordinator.ComputeGraph{}, fmt.Errorf("load graph %s: %w", key, err)
	}
	s.graphCache[key] = g
	return g, nil
}

func (s *Scheduler) allocate(ctx context.Context) error {
	namespaces, err := s.cfg.Store.ListNamespaces(ctx)
	if err != nil {
		return err
	}
	executors, err := s.cfg.Store.ListExecutors(ctx)
	if err != nil {
		return err
	}
	var inFlight []coordinator.Task
	for _, e := range executors {
		held, err := s.cfg.Store.ListTasksByExecutor(ctx, e.ID)
		if err != nil {
			return err
		}
		inFlight = append(inFlight, held...)
	}

	for _, ns := range namespaces {
		unassigned, err := s.cfg.Store.ListUnassignedTasks(ctx, ns.Name)
		if err != nil {
			return err
		}
		if len(unassigned) == 0 {
			continue
		}

		constraints := s.constraintLookup(ctx, ns.Name)
		plan, err := s.cfg.Allocator.Plan(unassigned, executors, inFlight, constraints)
		if err != nil {
			return err
		}
		if len(plan) == 0 {
			continue
		}
		if _, err := s.cfg.Machine.CommitAssignments(ctx, plan, 0); err != nil {
			return err
		}
		for taskID, executorID := range plan {
			inFlight = append(inFlight, coordinator.Task{ID: taskID, AssignedExecutor: executorID, Outcome: coordinator.TaskOutcomeUnknown})
		}
	}
	return nil
}

// constraintLookup returns a fn-name -> placement-constraint lookup
// scoped to namespace, backed by every graph currently defined in it. A
// function name that no longer exists in any graph returns no
// constraint, which conservatively makes it eligible for any executor
// rather than unschedulable.
func (s *Scheduler) constraintLookup(ctx context.Context, namespace string) func(string) map[coordinator.Label]struct{} {
	graphs, err := s.cfg.Store.ListGraphs(ctx, namespace)
	if err != nil {
		graphs = nil
	}
	byFn := make(map[string]map[coordinator.Label]struct{})
	for _, g := range graphs {
		for _, node := range g.Nodes {
			if node.Kind == coordinator.NodeKindCompute {
				byFn[node.Compute.Name] = node.Compute.PlacementConstraints
			}
		}
	}
	return func(fn string) map[coordinator.Label]struct{} {
		return byFn[fn]
	}
}
