package sqlstore

import (
	"encoding/json"
	"fmt"

	"github.com/vertexflow/coordinator"
)

// The wire shapes below exist only to give the map/set fields on
// coordinator types (PlacementConstraints, Labels, Nodes) a JSON
// representation that round-trips through a TEXT/JSONB column without
// exposing struct{} or Label-keyed maps to encoding/json, which cannot
// marshal non-string map keys or empty-struct values in the shape we
// want on the wire.

type jsonComputeFn struct {
	Name                 string   `json:"name"`
	FnName               string   `json:"fn_name"`
	Description          string   `json:"description"`
	PlacementConstraints []string `json:"placement_constraints"`
}

type jsonRouter struct {
	Name            string   `json:"name"`
	SourceFn        string   `json:"source_fn"`
	TargetFunctions []string `json:"target_functions"`
	Description     string   `json:"description"`
}

type jsonNode struct {
	Kind    string        `json:"kind"` // "compute" | "router"
	Compute jsonComputeFn `json:"compute,omitempty"`
	Router  jsonRouter    `json:"router,omitempty"`
}

func encodeNodes(nodes map[string]coordinator.Node) (string, error) {
	out := make(map[string]jsonNode, len(nodes))
	for name, n := range nodes {
		switch n.Kind {
		case coordinator.NodeKindCompute:
			labels := make([]string, 0, len(n.Compute.PlacementConstraints))
			for l := range n.Compute.PlacementConstraints {
				labels = append(labels, string(l))
			}
			out[name] = jsonNode{Kind: "compute", Compute: jsonComputeFn{
				Name:                 n.Compute.Name,
				FnName:               n.Compute.FnName,
				Description:          n.Compute.Description,
				PlacementConstraints: labels,
			}}
		case coordinator.NodeKindRouter:
			out[name] = jsonNode{Kind: "router", Router: jsonRouter{
				Name:            n.Router.Name,
				SourceFn:        n.Router.SourceFn,
				TargetFunctions: n.Router.TargetFunctions,
				Description:     n.Router.Description,
			}}
		default:
			return "", fmt.Errorf("sqlstore: unknown node kind %d for node %q", n.Kind, name)
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("sqlstore: encode nodes: %w", err)
	}
	return string(b), nil
}

func decodeNodes(s string) (map[string]coordinator.Node, error) {
	var raw map[string]jsonNode
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("sqlstore: decode nodes: %w", err)
	}
	out := make(map[string]coordinator.Node, len(raw))
	for name, n := range raw {
		switch n.Kind {
		case "compute":
			constraints := make(map[coordinator.Label]struct{}, len(n.Compute.PlacementConstraints))
			for _, l := range n.Compute.PlacementConstraints {
				constraints[coordinator.Label(l)] = struct{}{}
			}
			out[name] = coordinator.Node{
				Kind: coordinator.NodeKindCompute,
				Compute: coordinator.ComputeFn{
					Name:                 n.Compute.Name,
					FnName:               n.Compute.FnName,
					Description:          n.Compute.Description,
					PlacementConstraints: constraints,
				},
			}
		case "router":
			out[name] = coordinator.Node{
				Kind: coordinator.NodeKindRouter,
				Router: coordinator.DynamicEdgeRouter{
					Name:            n.Router.Name,
					SourceFn:        n.Router.SourceFn,
					TargetFunctions: n.Router.TargetFunctions,
					Description:     n.Router.Description,
				},
			}
		default:
			return nil, fmt.Errorf("sqlstore: unknown node kind %q for node %q", n.Kind, name)
		}
	}
	return out, nil
}

func encodeEdges(edges map[string][]string) (string, error) {
	b, err := json.Marshal(edges)
	if err != nil {
		return "", fmt.Errorf("sqlstore: encode edges: %w", err)
	}
	return string(b), nil
}

func decodeEdges(s string) (map[string][]string, error) {
	var out map[string][]string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("sqlstore: decode edges: %w", err)
	}
	return out, nil
}

func encodeLabelsAny(labels map[string]any) (string, error) {
	b, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("sqlstore: encode labels: %w", err)
	}
	return string(b), nil
}

func decodeLabelsAny(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("sqlstore: decode labels: %w", err)
	}
	return out, nil
}

func encodeLabelSet(labels map[coordinator.Label]struct{}) (string, error) {
	out := make([]string, 0, len(labels))
	for l := range labels {
		out = append(out, string(l))
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("sqlstore: encode label set: %w", err)
	}
	return string(b), nil
}

func decodeLabelSet(s string) (map[coordinator.Label]struct{}, error) {
	var raw []string
	if s != "" {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, fmt.Errorf("sqlstore: decode label set: %w", err)
		}
	}
	out := make(map[coordinator.Label]struct{}, len(raw))
	for _, l := range raw {
		out[coordinator.Label(l)] = struct{}{}
	}
	return out, nil
}

func encodePayload(payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("sqlstore: encode payload: %w", err)
	}
	return string(b), nil
}

// decodePayload decodes payload_json into the concrete payload type
// implied by kind, mirroring the kind-to-payload pairing the statemachine
// package's commands use when they append each change.
func decodePayload(kind coordinator.StateChangeKind, raw string) (any, error) {
	var target any
	switch kind {
	case coordinator.StateChangeContentCreated:
		target = &coordinator.ContentCreatedPayload{}
	case coordinator.StateChangeInvokeComputeGraph:
		target = &coordinator.InvokeComputeGraphPayload{}
	case coordinator.StateChangeTasksCreated:
		target = &coordinator.TasksCreatedPayload{}
	case coordinator.StateChangeTasksAssigned:
		target = &coordinator.TasksAssignedPayload{}
	case coordinator.StateChangeTaskCompleted:
		target = &coordinator.TaskCompletedPayload{}
	case coordinator.StateChangeExecutorAdded:
		target = &coordinator.ExecutorAddedPayload{}
	case coordinator.StateChangeExecutorRemoved:
		target = &coordinator.ExecutorRemovedPayload{}
	default:
		return nil, fmt.Errorf("sqlstore: unknown state change kind %q", kind)
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return nil, fmt.Errorf("sqlstore: decode payload for %q: %w", kind, err)
	}
	return derefPayload(target), nil
}

func derefPayload(target any) any {
	switch v := target.(type) {
	case *coordinator.ContentCreatedPayload:
		return *v
	case *coordinator.InvokeComputeGraphPayload:
		return *v
	case *coordinator.TasksCreatedPayload:
		return *v
	case *coordinator.TasksAssignedPayload:
		return *v
	case *coordinator.TaskCompletedPayload:
		return *v
	case *coordinator.ExecutorAddedPayload:
		return *v
	case *coordinator.ExecutorRemovedPayload:
		return *v
	default:
		return target
	}
}
