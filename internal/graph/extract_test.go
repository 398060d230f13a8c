package graph

import (
	"testing"

	"studio/internal/api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, src string) models.WorkflowDocument {
	t.Helper()
	doc, err := models.DecodeWorkflow([]byte(src))
	require.NoError(t, err)
	return doc
}

func grid() Option {
	return WithPlacement(GridPlacement{Columns: 2, Spacing: 100})
}

func TestExtract_SingleReference(t *testing.T) {
	doc := decode(t, `{"3": {"class_type": "KSampler", "inputs": {"seed": 42, "model": ["1", 0]}}}`)

	g := Extract(doc, grid())

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "3", g.Nodes[0].ID)
	assert.Equal(t, "KSampler", g.Nodes[0].Label)
	assert.Equal(t, "KSampler", g.Nodes[0].Type)

	require.Len(t, g.Edges, 1)
	edge := g.Edges[0]
	assert.Equal(t, "1", edge.Source)
	assert.Equal(t, "3", edge.Target)
	assert.Equal(t, 0, edge.SourceSlot)
	assert.Equal(t, []string{"model"}, edge.TargetPath)
	assert.Equal(t, EdgeID("1", 0, "3", []string{"model"}), edge.ID)

	// node "1" is not in the document
	require.Len(t, g.Diagnostics, 1)
	assert.Equal(t, "3", g.Diagnostics[0].NodeID)
	assert.Equal(t, []string{"model"}, g.Diagnostics[0].Path)
}

func TestExtract_EdgePerReferenceLeaf(t *testing.T) {
	doc := decode(t, `{
		"1": {"class_type": "Loader", "inputs": {}},
		"2": {"class_type": "Combine", "inputs": {
			"a": ["1", 0],
			"b": ["1", 1],
			"nested": {"inner": ["1", 2], "value": 3},
			"list": [["1", 0], 5, {"deep": ["1", 1]}],
			"plain": [1, 2, 3]
		}}
	}`)

	g := Extract(doc, grid())

	require.Len(t, g.Edges, 5)
	paths := make([][]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		assert.Equal(t, "1", e.Source)
		assert.Equal(t, "2", e.Target)
		paths = append(paths, e.TargetPath)
	}
	assert.ElementsMatch(t, [][]string{
		{"a"},
		{"b"},
		{"nested", "inner"},
		{"list", "0"},
		{"list", "2", "deep"},
	}, paths)
	assert.Empty(t, g.Diagnostics)
}

func TestExtract_Deterministic(t *testing.T) {
	src := `{
		"10": {"class_type": "B", "inputs": {"x": ["2", 0], "y": ["2", 1]}},
		"2": {"class_type": "A", "inputs": {"seed": 1}}
	}`

	first := Extract(decode(t, src), grid())
	second := Extract(decode(t, src), grid())

	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.Edges, second.Edges)
	assert.Equal(t, []string{"2", "10"}, []string{first.Nodes[0].ID, first.Nodes[1].ID})
}

func TestExtract_DuplicateLinksHaveDistinctIDs(t *testing.T) {
	doc := decode(t, `{
		"1": {"class_type": "A", "inputs": {}},
		"2": {"class_type": "B", "inputs": {"x": ["1", 0], "y": ["1", 0]}}
	}`)

	g := Extract(doc, grid())

	require.Len(t, g.Edges, 2)
	assert.NotEqual(t, g.Edges[0].ID, g.Edges[1].ID)
}

func TestExtract_MalformedNodeStillListed(t *testing.T) {
	doc := decode(t, `{
		"1": {"class_type": "A", "inputs": {}},
		"2": 17,
		"3": {"inputs": {"x": ["1", 0]}}
	}`)

	g := Extract(doc, grid())

	require.Len(t, g.Nodes, 3)
	broken, ok := g.Node("2")
	require.True(t, ok)
	assert.Equal(t, "2", broken.Label)
	assert.Empty(t, broken.Type)

	var diagnosed []string
	for _, d := range g.Diagnostics {
		diagnosed = append(diagnosed, d.NodeID)
	}
	assert.ElementsMatch(t, []string{"2", "3"}, diagnosed)

	// a node without class_type still contributes its links
	assert.Len(t, g.Incoming("3"), 1)
}

func TestExtract_LiteralShapedAsReference(t *testing.T) {
	doc := decode(t, `{"1": {"class_type": "Resize", "inputs": {"mode": ["auto", 5]}}}`)

	g := Extract(doc, grid())

	require.Len(t, g.Edges, 1)
	assert.Equal(t, "auto", g.Edges[0].Source)
	assert.Equal(t, 5, g.Edges[0].SourceSlot)
}

func TestExtract_NonIntegerSlot(t *testing.T) {
	doc := decode(t, `{
		"1": {"class_type": "A", "inputs": {}},
		"2": {"class_type": "B", "inputs": {"x": ["1", "first"]}}
	}`)

	g := Extract(doc, grid())

	require.Len(t, g.Edges, 1)
	assert.Equal(t, -1, g.Edges[0].SourceSlot)
	require.Len(t, g.Diagnostics, 1)
	assert.Equal(t, []string{"x"}, g.Diagnostics[0].Path)
}

func TestExtract_LabelAndPosition(t *testing.T) {
	doc := decode(t, `{
		"1": {"class_type": "A", "inputs": {}, "_meta": {"title": "Checkpoint", "node": {"x": 12.5, "y": 40}}},
		"2": {"class_type": "B", "inputs": {}},
		"3": {"class_type": "C", "inputs": {}, "_meta": {"node": {"x": 7}}}
	}`)

	g := Extract(doc, grid())

	first, _ := g.Node("1")
	assert.Equal(t, "Checkpoint", first.Label)
	assert.Equal(t, Position{X: 12.5, Y: 40}, first.Position)

	second, _ := g.Node("2")
	assert.Equal(t, "B", second.Label)
	assert.Equal(t, Position{X: 100, Y: 0}, second.Position)

	third, _ := g.Node("3")
	assert.Equal(t, Position{X: 7, Y: 0}, third.Position)
}

func TestExtract_RandomPlacementStaysInArea(t *testing.T) {
	doc := decode(t, `{"1": {"class_type": "A", "inputs": {}}, "2": {"class_type": "B", "inputs": {}}}`)

	g := Extract(doc)

	for _, n := range g.Nodes {
		assert.GreaterOrEqual(t, n.Position.X, 0.0)
		assert.Less(t, n.Position.X, 500.0)
		assert.GreaterOrEqual(t, n.Position.Y, 0.0)
		assert.Less(t, n.Position.Y, 500.0)
	}
}

func TestExtract_EmptyDocument(t *testing.T) {
	g := Extract(models.WorkflowDocument{}, grid())

	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Edges)
}

func TestGraph_IncomingOutgoing(t *testing.T) {
	doc := decode(t, `{
		"1": {"class_type": "A", "inputs": {}},
		"2": {"class_type": "B", "inputs": {"x": ["1", 0]}},
		"3": {"class_type": "C", "inputs": {"x": ["2", 0], "y": ["1", 1]}}
	}`)

	g := Extract(doc, grid())

	assert.Len(t, g.Outgoing("1"), 2)
	assert.Len(t, g.Incoming("3"), 2)
	assert.Empty(t, g.Incoming("1"))
	_, ok := g.Node("9")
	assert.False(t, ok)
}
