// Package flow resolves automation graph topology: entry node lookup and
// edge traversal. Nodes have no inherent order; everything derives from
// edges.
package flow

import (
	"errors"

	"github.com/zaplane/zaplane/pkg/models"
)

var (
	// ErrNoEntryNode indicates no node without incoming edges exists.
	ErrNoEntryNode = errors.New("flow has no entry node")

	// ErrMultipleEntryNodes indicates more than one node has no incoming
	// edge, which makes the starting point ambiguous.
	ErrMultipleEntryNodes = errors.New("flow has multiple entry nodes")
)

// Graph is an immutable view over one automation's nodes and edges.
type Graph struct {
	nodes    []*models.FlowNode
	edges    []*models.FlowEdge
	nodeByID map[string]*models.FlowNode
}

func NewGraph(nodes []*models.FlowNode, edges []*models.FlowEdge) *Graph {
	byID := make(map[string]*models.FlowNode, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	return &Graph{
		nodes:    nodes,
		edges:    edges,
		nodeByID: byID,
	}
}

func (g *Graph) Empty() bool {
	return len(g.nodes) == 0
}

// NodeByID returns the node with the given id, if present.
func (g *Graph) NodeByID(id string) (*models.FlowNode, bool) {
	node, ok := g.nodeByID[id]

	return node, ok
}

// EntryNode returns the unique node with no incoming edge.
func (g *Graph) EntryNode() (*models.FlowNode, error) {
	hasIncoming := make(map[string]bool, len(g.edges))
	for _, edge := range g.edges {
		hasIncoming[edge.TargetNodeID] = true
	}

	var entry *models.FlowNode

	for _, node := range g.nodes {
		if hasIncoming[node.ID] {
			continue
		}

		if entry != nil {
			return nil, ErrMultipleEntryNodes
		}

		entry = node
	}

	if entry == nil {
		return nil, ErrNoEntryNode
	}

	return entry, nil
}

// OutgoingEdges returns the edges leaving nodeID in definition order. For a
// conditions node, index 0 is the true branch and index 1 the false branch.
func (g *Graph) OutgoingEdges(nodeID string) []*models.FlowEdge {
	var outgoing []*models.FlowEdge

	for _, edge := range g.edges {
		if edge.SourceNodeID == nodeID {
			outgoing = append(outgoing, edge)
		}
	}

	return outgoing
}
