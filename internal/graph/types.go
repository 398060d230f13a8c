package graph

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one workflow node as drawn in the editor.
type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

// Edge links an output slot of Source to the input field of Target found at TargetPath.
type Edge struct {
	ID         string   `json:"id"`
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	SourceSlot int      `json:"sourceSlot"`
	TargetPath []string `json:"targetPath"`
}

// Diagnostic records a part of the document that was skipped during extraction.
type Diagnostic struct {
	NodeID  string   `json:"nodeId"`
	Path    []string `json:"path,omitempty"`
	Message string   `json:"message"`
}

// Graph is the structural form of a workflow document. It is derived on every
// load and never persisted.
type Graph struct {
	Nodes       []Node       `json:"nodes"`
	Edges       []Edge       `json:"edges"`
	Diagnostics []Diagnostic `json:"diagnostics"`

	nodeIndex map[string]int
}

func (slf *Graph) Node(id string) (Node, bool) {
	if slf.nodeIndex != nil {
		idx, ok := slf.nodeIndex[id]
		if !ok {
			return Node{}, false
		}
		return slf.Nodes[idx], true
	}
	for _, n := range slf.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Incoming returns the edges whose target is id.
func (slf *Graph) Incoming(id string) []Edge {
	var edges []Edge
	for _, e := range slf.Edges {
		if e.Target == id {
			edges = append(edges, e)
		}
	}
	return edges
}

// Outgoing returns the edges whose source is id.
func (slf *Graph) Outgoing(id string) []Edge {
	var edges []Edge
	for _, e := range slf.Edges {
		if e.Source == id {
			edges = append(edges, e)
		}
	}
	return edges
}

func (slf *Graph) buildIndex() {
	slf.nodeIndex = make(map[string]int, len(slf.Nodes))
	for i, n := range slf.Nodes {
		slf.nodeIndex[n.ID] = i
	}
}
