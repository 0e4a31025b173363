package statemachine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vertexflow/coordinator/statemachine"
)

func TestValidateGraphJSONAcceptsWellFormedDefinition(t *testing.T) {
	def := `{
		"namespace": "docs",
		"name": "extract",
		"start_fn": "chunk",
		"nodes": {
			"chunk": {"kind": "compute", "fn_name": "chunk"},
			"embed": {"kind": "compute", "fn_name": "embed"}
		},
		"edges": {"chunk": ["embed"]}
	}`
	assert.NoError(t, statemachine.ValidateGraphJSON([]byte(def)))
}

func TestValidateGraphJSONRejectsMissingStartFn(t *testing.T) {
	def := `{
		"namespace": "docs",
		"name": "extract",
		"nodes": {"chunk": {"kind": "compute"}}
	}`
	assert.Error(t, statemachine.ValidateGraphJSON([]byte(def)))
}

func TestValidateGraphJSONRejectsUnknownNodeKind(t *testing.T) {
	def := `{
		"namespace": "docs",
		"name": "extract",
		"start_fn": "chunk",
		"nodes": {"chunk": {"kind": "transform"}}
	}`
	assert.Error(t, statemachine.ValidateGraphJSON([]byte(def)))
}

func TestValidateGraphJSONRejectsMalformedJSON(t *testing.T) {
	assert.Error(t, statemachine.ValidateGraphJSON([]byte(`{not json`)))
}

func TestValidateGraphJSONRejectsWrongEdgeTargetType(t *testing.T) {
	def := `{
		"namespace": "docs",
		"name": "extract",
		"start_fn": "chunk",
		"nodes": {"chunk": {"kind": "compute"}},
		"edges": {"chunk": [1, 2]}
	}`
	assert.Error(t, statemachine.ValidateGraphJSON([]byte(def)))
}
