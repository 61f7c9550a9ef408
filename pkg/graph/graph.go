package graph

import (
	"fmt"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/protocol"
)

// Terminal is the edge target marking the end of a run. Routing to it marks
// the run Succeeded.
const Terminal = "__end__"

// Predicate decides whether an edge matches a step outcome.
type Predicate func(*models.StepOutcome) bool

// Edge connects a node to its successor. Edges are evaluated in declaration
// order; the first matching predicate wins. An edge with a nil predicate is
// the default edge and always matches.
type Edge struct {
	Target    string
	Predicate Predicate
}

// OnSignal builds an edge that matches a specific outcome signal.
func OnSignal(signal models.Signal, target string) Edge {
	return Edge{
		Target: target,
		Predicate: func(out *models.StepOutcome) bool {
			return out != nil && out.Signal == signal
		},
	}
}

// Default builds the catch-all edge taken when no earlier edge matches.
func Default(target string) Edge {
	return Edge{Target: target}
}

// Graph is a directed graph of named agent steps with predicate edges.
// Graphs are declared at startup and immutable during execution.
type Graph struct {
	name  string
	entry string
	steps map[string]protocol.Step
	edges map[string][]Edge
	order []string // declaration order, for validation messages
}

// New creates an empty graph with the given entry node name.
func New(name, entry string) *Graph {
	return &Graph{
		name:  name,
		entry: entry,
		steps: make(map[string]protocol.Step),
		edges: make(map[string][]Edge),
	}
}

// Name returns the graph's name.
func (g *Graph) Name() string {
	return g.name
}

// Entry returns the entry node name.
func (g *Graph) Entry() string {
	return g.entry
}

// AddStep registers a step under its node name.
func (g *Graph) AddStep(step protocol.Step) *Graph {
	if _, exists := g.steps[step.Name()]; !exists {
		g.order = append(g.order, step.Name())
	}

	g.steps[step.Name()] = step

	return g
}

// Connect declares the ordered outgoing edges of a node.
func (g *Graph) Connect(node string, edges ...Edge) *Graph {
	g.edges[node] = append(g.edges[node], edges...)

	return g
}

// Step looks up a step by node name.
func (g *Graph) Step(node string) (protocol.Step, bool) {
	step, ok := g.steps[node]

	return step, ok
}

// Route resolves the next node for a step outcome: first matching edge in
// declaration order, then the default edge. No match and no default is a
// RoutingError.
func (g *Graph) Route(node string, out *models.StepOutcome) (string, error) {
	var fallback string

	for _, edge := range g.edges[node] {
		if edge.Predicate == nil {
			if fallback == "" {
				fallback = edge.Target
			}

			continue
		}

		if edge.Predicate(out) {
			return edge.Target, nil
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	var signal models.Signal
	if out != nil {
		signal = out.Signal
	}

	return "", &RoutingError{Node: node, Signal: signal}
}

// Validate checks the graph is executable: the entry step exists, every edge
// targets a declared step or the terminal marker, and every step can reach
// the terminal marker.
func (g *Graph) Validate() error {
	if _, ok := g.steps[g.entry]; !ok {
		return fmt.Errorf("graph %s: entry node %q is not a registered step", g.name, g.entry)
	}

	for node, edges := range g.edges {
		if _, ok := g.steps[node]; !ok {
			return fmt.Errorf("graph %s: edges declared for unknown node %q", g.name, node)
		}

		for _, edge := range edges {
			if edge.Target == Terminal {
				continue
			}

			if _, ok := g.steps[edge.Target]; !ok {
				return fmt.Errorf("graph %s: edge from %q targets unknown node %q", g.name, node, edge.Target)
			}
		}
	}

	for _, node := range g.order {
		if !g.reachesTerminal(node, make(map[string]bool)) {
			return fmt.Errorf("graph %s: node %q cannot reach the terminal marker", g.name, node)
		}
	}

	return nil
}

func (g *Graph) reachesTerminal(node string, seen map[string]bool) bool {
	if seen[node] {
		return false
	}

	seen[node] = true

	for _, edge := range g.edges[node] {
		if edge.Target == Terminal {
			return true
		}

		if g.reachesTerminal(edge.Target, seen) {
			return true
		}
	}

	return false
}

// Replay walks a run's step records through the graph from its entry node and
// returns the node the run must currently be at. It verifies the recorded
// outcomes route exactly to the persisted current node, guarding against
// orphaned state after a resume.
func Replay(g *Graph, run *models.Run) (string, error) {
	node := run.EntryNode

	for i := range run.Steps {
		rec := &run.Steps[i]
		if rec.Outcome == nil {
			continue // failed attempt, node did not advance
		}

		if rec.Node != node {
			return "", fmt.Errorf("step record %d is for node %q but replay is at %q", i, rec.Node, node)
		}

		if rec.Outcome.Signal == models.SignalSuspend {
			continue // suspended in place
		}

		next, err := g.Route(node, rec.Outcome)
		if err != nil {
			return "", err
		}

		if next == Terminal {
			return Terminal, nil
		}

		node = next
	}

	return node, nil
}
