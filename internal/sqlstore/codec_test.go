package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vertexflow/coordinator"
)

func TestEncodeDecodeNodesRoundTrip(t *testing.T) {
	nodes := map[string]coordinator.Node{
		"extract": {
			Kind: coordinator.NodeKindCompute,
			Compute: coordinator.ComputeFn{
				Name:   "extract",
				FnName: "pkg.Extract",
				PlacementConstraints: map[coordinator.Label]struct{}{
					"gpu": {},
				},
			},
		},
		"route": {
			Kind: coordinator.NodeKindRouter,
			Router: coordinator.DynamicEdgeRouter{
				Name:            "route",
				SourceFn:        "extract",
				TargetFunctions: []string{"embed", "summarize"},
			},
		},
	}

	encoded, err := encodeNodes(nodes)
	require.NoError(t, err)

	decoded, err := decodeNodes(encoded)
	require.NoError(t, err)

	require.Len(t, decoded, 2)
	assert.Equal(t, coordinator.NodeKindCompute, decoded["extract"].Kind)
	_, hasGPU := decoded["extract"].Compute.PlacementConstraints["gpu"]
	assert.True(t, hasGPU)
	assert.Equal(t, coordinator.NodeKindRouter, decoded["route"].Kind)
	assert.Equal(t, []string{"embed", "summarize"}, decoded["route"].Router.TargetFunctions)
}

func TestEncodeDecodeEdgesRoundTrip(t *testing.T) {
	edges := map[string][]string{"a": {"b", "c"}, "b": {}}
	encoded, err := encodeEdges(edges)
	require.NoError(t, err)

	decoded, err := decodeEdges(encoded)
	require.NoError(t, err)
	assert.Equal(t, edges, decoded)
}

func TestEncodeDecodeLabelSetRoundTrip(t *testing.T) {
	labels := map[coordinator.Label]struct{}{"gpu": {}, "region-us": {}}
	encoded, err := encodeLabelSet(labels)
	require.NoError(t, err)

	decoded, err := decodeLabelSet(encoded)
	require.NoError(t, err)
	assert.Equal(t, labels, decoded)
}

func TestDecodePayloadDispatchesOnKind(t *testing.T) {
	encoded, err := encodePayload(coordinator.TaskCompletedPayload{TaskID: "t1", Outcome: coordinator.TaskOutcomeSuccess})
	require.NoError(t, err)

	decoded, err := decodePayload(coordinator.StateChangeTaskCompleted, encoded)
	require.NoError(t, err)

	payload, ok := decoded.(coordinator.TaskCompletedPayload)
	require.True(t, ok)
	assert.Equal(t, "t1", payload.TaskID)
	assert.Equal(t, coordinator.TaskOutcomeSuccess, payload.Outcome)
}

func TestDecodePayloadUnknownKind(t *testing.T) {
	_, err := decodePayload(coordinator.StateChangeKind("bogus"), "{}")
	assert.Error(t, err)
}
