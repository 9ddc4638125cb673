package graph

import (
	"context"
	"fmt"
)

// NodeType represents the type of a node in the graph
type NodeType string

const (
	NodeTypeStart  NodeType = "start"
	NodeTypeEnd    NodeType = "end"
	NodeTypeLLM    NodeType = "llm"
	NodeTypeTool   NodeType = "tool"
	NodeTypeCustom NodeType = "custom"
)

// State represents the execution state passed between nodes
type State map[string]any

// NodeFunc is the function executed by a node
type NodeFunc func(context.Context, State) (State, error)

// DecisionFunc inspects the state after a node ran and returns the label of
// the edge to follow. Labels are resolved against the node's NextMap.
type DecisionFunc func(context.Context, State) (string, error)

// Node represents a node in the execution graph
type Node struct {
	Name     string
	Type     NodeType
	Execute  NodeFunc
	Decision DecisionFunc      // Optional: picks one of the labelled edges after Execute
	Next     string            // Unconditional edge, used when Decision is nil
	NextMap  map[string]string // Decision label -> next node name
}

// Graph is an explicit state machine: a table of named nodes, each with a
// handler and either a fixed next node or a decision function over labelled
// edges. Execution is strictly sequential; one node runs to completion before
// the next is resolved.
type Graph struct {
	nodes     map[string]*Node
	startNode string
	maxVisits int
}

// NewGraph creates a new graph
func NewGraph() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		maxVisits: 10,
	}
}

func (g *Graph) validateNode(node *Node) {
	if node.Name == "" {
		panic("node name cannot be empty")
	}
	if node.Execute == nil {
		panic(fmt.Sprintf("node %s must have non-nil Execute function", node.Name))
	}
	if node.Decision != nil && len(node.NextMap) == 0 {
		panic(fmt.Sprintf("node %s has a decision function but no labelled edges", node.Name))
	}
}

// AddNode adds a node to the graph
func (g *Graph) AddNode(node *Node) {
	if _, exists := g.nodes[node.Name]; exists {
		panic(fmt.Sprintf("node %s already exists", node.Name))
	}

	g.validateNode(node)

	g.nodes[node.Name] = node

	if node.Type == NodeTypeStart {
		g.startNode = node.Name
	}
}

// SetStartNode sets the start node
func (g *Graph) SetStartNode(name string) {
	if _, exists := g.nodes[name]; !exists {
		panic(fmt.Sprintf("node %s not found", name))
	}
	g.startNode = name
}

// SetMaxVisits sets the maximum number of visits to a single node. Bounded
// loops (e.g. retry cycles) revisit nodes; the cap guards against graphs that
// never converge.
func (g *Graph) SetMaxVisits(maxVisits int) {
	g.maxVisits = maxVisits
}

// GetNode returns a node by name
func (g *Graph) GetNode(name string) (*Node, error) {
	node, exists := g.nodes[name]
	if !exists {
		return nil, fmt.Errorf("node %s not found", name)
	}
	return node, nil
}

// Execute walks the graph from the start node, threading the state through
// each handler, until an end node completes. Node handlers run synchronously;
// any handler or decision error aborts the walk and is returned to the caller.
func (g *Graph) Execute(ctx context.Context, initialState State) (State, error) {
	if g.startNode == "" {
		return nil, fmt.Errorf("start node not set")
	}

	state := initialState
	if state == nil {
		state = make(State)
	}

	visited := make(map[string]int)
	current := g.startNode

	for {
		node, exists := g.nodes[current]
		if !exists {
			return nil, fmt.Errorf("node %s not found", current)
		}

		visited[current]++
		if visited[current] > g.maxVisits {
			return nil, fmt.Errorf("infinite loop detected at node %s", current)
		}

		var err error
		state, err = node.Execute(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("error executing node %s: %w", current, err)
		}

		if node.Type == NodeTypeEnd {
			return state, nil
		}

		next, err := g.resolveNext(ctx, node, state)
		if err != nil {
			return nil, err
		}
		current = next
	}
}

func (g *Graph) resolveNext(ctx context.Context, node *Node, state State) (string, error) {
	if node.Decision == nil {
		if node.Next == "" {
			return "", fmt.Errorf("no next node specified for node %s", node.Name)
		}
		return node.Next, nil
	}

	label, err := node.Decision(ctx, state)
	if err != nil {
		return "", fmt.Errorf("error evaluating decision at node %s: %w", node.Name, err)
	}
	next := node.NextMap[label]
	if next == "" {
		return "", fmt.Errorf("node %s has no edge labelled %q", node.Name, label)
	}
	return next, nil
}

// Builder helps build graphs fluently
type Builder struct {
	graph *Graph
}

// NewBuilder creates a new graph builder
func NewBuilder() *Builder {
	return &Builder{
		graph: NewGraph(),
	}
}

// AddNode adds a node to the graph
func (b *Builder) AddNode(name string, nodeType NodeType, execute NodeFunc) *Builder {
	b.graph.AddNode(&Node{
		Name:    name,
		Type:    nodeType,
		Execute: execute,
	})
	return b
}

// AddEdge sets the unconditional outgoing edge of a node
func (b *Builder) AddEdge(from, to string) *Builder {
	node, exists := b.graph.nodes[from]
	if !exists {
		panic(fmt.Sprintf("node %s not found", from))
	}
	node.Next = to
	return b
}

// AddConditionalEdges attaches a decision function and its labelled edges to a node
func (b *Builder) AddConditionalEdges(from string, decision DecisionFunc, nextMap map[string]string) *Builder {
	node, exists := b.graph.nodes[from]
	if !exists {
		panic(fmt.Sprintf("node %s not found", from))
	}
	node.Decision = decision
	node.NextMap = nextMap
	return b
}

// SetStart sets the start node
func (b *Builder) SetStart(name string) *Builder {
	b.graph.SetStartNode(name)
	return b
}

// SetMaxVisits sets the maximum number of visits to a node
func (b *Builder) SetMaxVisits(maxVisits int) *Builder {
	b.graph.SetMaxVisits(maxVisits)
	return b
}

// Build returns the constructed graph
func (b *Builder) Build() *Graph {
	return b.graph
}
