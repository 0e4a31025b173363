package statemachine

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// graphDefinitionSchema is the JSON Schema for the wire-format graph
// definition an ingestion frontend decodes into a coordinator.ComputeGraph
// before calling Machine.CreateGraph. It is compiled once, lazily, since
// jsonschema.Compile does non-trivial work walking $ref/$id resolution.
const graphDefinitionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["namespace", "name", "nodes", "start_fn"],
	"properties": {
		"namespace": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"start_fn": {"type": "string", "minLength": 1},
		"code": {
			"type": "object",
			"properties": {
				"path":   {"type": "string"},
				"size":   {"type": "integer", "minimum": 0},
				"sha256": {"type": "string"}
			}
		},
		"nodes": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {
				"type": "object",
				"required": ["kind"],
				"properties": {
					"kind": {"type": "string", "enum": ["compute", "router"]},
					"fn_name": {"type": "string"},
					"description": {"type": "string"},
					"placement_constraints": {
						"type": "array",
						"items": {"type": "string"}
					},
					"target_functions": {
						"type": "array",
						"items": {"type": "string"}
					}
				}
			}
		},
		"edges": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"items": {"type": "string"}
			}
		}
	}
}`

var (
	graphSchemaOnce sync.Once
	graphSchema     *jsonschema.Schema
	graphSchemaErr  error
)

func compiledGraphSchema() (*jsonschema.Schema, error) {
	graphSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("graph-definition.json", strings.NewReader(graphDefinitionSchema)); err != nil {
			graphSchemaErr = fmt.Errorf("add graph schema resource: %w", err)
			return
		}
		graphSchema, graphSchemaErr = compiler.Compile("graph-definition.json")
	})
	return graphSchema, graphSchemaErr
}

// ValidateGraphJSON checks a wire-format graph definition against the
// coordination core's JSON Schema before it is decoded into a
// coordinator.ComputeGraph and handed to CreateGraph. It catches
// malformed ingestion payloads (missing start_fn, a node with an unknown
// kind, an edge target with the wrong type) before they
// reach graph decoding, where the error would otherwise surface as a
// less specific type-conversion failure.
//
// ValidateGraphJSON does not check the graph-level invariants
// coordinator.ValidateGraph enforces (acyclicity, dangling edges) —
// those require the fully decoded graph and run inside CreateGraph.
func ValidateGraphJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("graph definition is not valid JSON: %w", err)
	}
	schema, err := compiledGraphSchema()
	if err != nil {
		return fmt.Errorf("compile graph schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("graph definition failed schema validation: %w", err)
	}
	return nil
}
