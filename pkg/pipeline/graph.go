package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/ragdemo/internal/models"
)

// Stage names a node of the pipeline graph.
type Stage string

const (
	StageStart    Stage = "__start__"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
	StageEnd      Stage = "__end__"
)

// Node mutates the shared state; an error aborts the run.
type Node func(ctx context.Context, state *models.State) error

var ErrInvalidGraph = errors.New("invalid pipeline graph")

// Graph is a linear state machine: every stage has at most one successor
// and transitions are unconditional.
type Graph struct {
	nodes    map[Stage]Node
	edges    map[Stage]Stage
	order    []Stage
	compiled bool
}

func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[Stage]Node),
		edges: make(map[Stage]Stage),
	}
}

func (g *Graph) AddNode(name Stage, node Node) *Graph {
	g.nodes[name] = node
	g.compiled = false
	return g
}

func (g *Graph) AddEdge(from, to Stage) *Graph {
	g.edges[from] = to
	g.compiled = false
	return g
}

// Compile resolves the path from start to end and rejects graphs with
// dangling edges, unreachable nodes or cycles.
func (g *Graph) Compile() error {
	var order []Stage
	seen := map[Stage]bool{}

	cur := StageStart
	for {
		next, ok := g.edges[cur]
		if !ok {
			return fmt.Errorf("%w: no transition out of %s", ErrInvalidGraph, cur)
		}
		if next == StageEnd {
			break
		}
		if _, ok := g.nodes[next]; !ok {
			return fmt.Errorf("%w: edge %s -> %s targets unknown node", ErrInvalidGraph, cur, next)
		}
		if seen[next] {
			return fmt.Errorf("%w: cycle at %s", ErrInvalidGraph, next)
		}
		seen[next] = true
		order = append(order, next)
		cur = next
	}

	for name := range g.nodes {
		if !seen[name] {
			return fmt.Errorf("%w: node %s is unreachable", ErrInvalidGraph, name)
		}
	}

	g.order = order
	g.compiled = true
	return nil
}

// Run executes every stage in order. observe, when set, is told about each
// stage before it runs.
func (g *Graph) Run(ctx context.Context, state *models.State, observe func(Stage)) error {
	if !g.compiled {
		if err := g.Compile(); err != nil {
			return err
		}
	}

	for _, stage := range g.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if observe != nil {
			observe(stage)
		}
		if err := g.nodes[stage](ctx, state); err != nil {
			return fmt.Errorf("%s: %w", stage, err)
		}
	}
	return nil
}
