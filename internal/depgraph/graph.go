package depgraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCycleDetected indicates a dependency cycle was found.
var ErrCycleDetected = errors.New("dependency cycle detected")

// ValidateAcyclic checks a dependency graph given as node -> dependency
// edges. It returns ErrCycleDetected (wrapped with the cycle path) if the
// graph contains a cycle, and an error if an edge references an unknown node.
// Used to validate decomposition plans before any task row is created.
func ValidateAcyclic(edges map[string][]string) error {
	for node, deps := range edges {
		for _, dep := range deps {
			if _, ok := edges[dep]; !ok {
				return fmt.Errorf("node %q depends on unknown node %q", node, dep)
			}
		}
	}

	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(edges))

	var visit func(node string, path []string) error
	visit = func(node string, path []string) error {
		colors[node] = 1

		for _, dep := range edges[node] {
			switch colors[dep] {
			case 1:
				cycle := append(path, node, dep)
				return fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(cycle, " -> "))
			case 0:
				if err := visit(dep, append(path, node)); err != nil {
					return err
				}
			}
		}

		colors[node] = 2
		return nil
	}

	// Deterministic iteration keeps cycle error messages stable.
	nodes := make([]string, 0, len(edges))
	for node := range edges {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		if colors[node] == 0 {
			if err := visit(node, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopologicalOrder returns the nodes of an acyclic graph in an order where
// every dependency comes before its dependents.
func TopologicalOrder(edges map[string][]string) ([]string, error) {
	if err := ValidateAcyclic(edges); err != nil {
		return nil, err
	}

	visited := make(map[string]bool, len(edges))
	var result []string

	var visit func(node string)
	visit = func(node string) {
		if visited[node] {
			return
		}
		visited[node] = true
		for _, dep := range edges[node] {
			visit(dep)
		}
		result = append(result, node)
	}

	nodes := make([]string, 0, len(edges))
	for node := range edges {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		visit(node)
	}
	return result, nil
}
