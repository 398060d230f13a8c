// Package graph recovers the node/edge structure of a workflow document from
// the references embedded in node inputs.
package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"studio/internal/api/models"

	"github.com/google/uuid"
)

var edgeNamespace = uuid.MustParse("3b8f6c2e-5d41-4a7e-9c0b-1e2f7a6d4c95")

type extractor struct {
	placement Placement
	graph     *Graph
}

type Option func(*extractor)

// WithPlacement sets how nodes without a stored position are placed.
func WithPlacement(p Placement) Option {
	return func(e *extractor) {
		e.placement = p
	}
}

// Extract builds the structural graph of doc: one node per document key and
// one edge per reference found in any node's inputs. It never fails; records
// and fields that cannot be read are reported in Graph.Diagnostics.
func Extract(doc models.WorkflowDocument, opts ...Option) *Graph {
	e := &extractor{
		placement: RandomPlacement,
		graph: &Graph{
			Nodes:       []Node{},
			Edges:       []Edge{},
			Diagnostics: []Diagnostic{},
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	ids := doc.NodeIDs()
	for i, id := range ids {
		rec := doc.Nodes[id]
		e.graph.Nodes = append(e.graph.Nodes, Node{
			ID:       id,
			Label:    nodeLabel(id, rec),
			Type:     rec.ClassType,
			Position: e.position(id, i, rec),
		})
		for _, issue := range rec.Issues {
			e.diagnose(id, nil, issue)
		}
	}

	for _, id := range ids {
		rec := doc.Nodes[id]
		for _, key := range sortedKeys(rec.Inputs) {
			e.walk(id, []string{key}, rec.Inputs[key])
		}
	}

	for _, edge := range e.graph.Edges {
		if _, ok := doc.Nodes[edge.Source]; !ok {
			e.diagnose(edge.Target, edge.TargetPath, fmt.Sprintf("reference to unknown node %q", edge.Source))
		}
	}

	e.graph.buildIndex()
	return e.graph
}

func (e *extractor) walk(target string, path []string, value models.FieldValue) {
	switch value.Kind {
	case models.ValueReference:
		e.graph.Edges = append(e.graph.Edges, Edge{
			ID:         EdgeID(value.Ref.SourceID, value.Ref.Slot, target, path),
			Source:     value.Ref.SourceID,
			Target:     target,
			SourceSlot: value.Ref.Slot,
			TargetPath: path,
		})
		if value.Ref.Slot < 0 {
			e.diagnose(target, path, "reference output slot is not an integer")
		}
	case models.ValueMap:
		for _, key := range sortedKeys(value.Map) {
			e.walk(target, appendPath(path, key), value.Map[key])
		}
	case models.ValueList:
		for i, item := range value.List {
			e.walk(target, appendPath(path, strconv.Itoa(i)), item)
		}
	}
}

func (e *extractor) position(id string, index int, rec models.NodeRecord) Position {
	if rec.Meta != nil && (rec.Meta.X != nil || rec.Meta.Y != nil) {
		var pos Position
		if rec.Meta.X != nil {
			pos.X = *rec.Meta.X
		}
		if rec.Meta.Y != nil {
			pos.Y = *rec.Meta.Y
		}
		return pos
	}
	return e.placement.Place(id, index)
}

func (e *extractor) diagnose(nodeID string, path []string, msg string) {
	e.graph.Diagnostics = append(e.graph.Diagnostics, Diagnostic{NodeID: nodeID, Path: path, Message: msg})
}

func nodeLabel(id string, rec models.NodeRecord) string {
	if rec.Meta != nil && rec.Meta.Title != "" {
		return rec.Meta.Title
	}
	if rec.ClassType != "" {
		return rec.ClassType
	}
	return id
}

// EdgeID derives the identifier of the edge (source, slot, target, path).
// Equal tuples always give equal ids.
func EdgeID(source string, slot int, target string, path []string) string {
	key, _ := json.Marshal([]any{source, slot, target, path})
	return uuid.NewSHA1(edgeNamespace, key).String()
}

func appendPath(path []string, key string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, key)
}

func sortedKeys(m map[string]models.FieldValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
