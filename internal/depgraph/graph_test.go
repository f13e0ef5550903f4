package depgraph

import (
	"errors"
	"testing"
)

func TestValidateAcyclic(t *testing.T) {
	tests := []struct {
		name    string
		edges   map[string][]string
		wantErr bool
		isCycle bool
	}{
		{
			name:  "empty graph",
			edges: map[string][]string{},
		},
		{
			name:  "chain",
			edges: map[string][]string{"a": nil, "b": {"a"}, "c": {"b"}},
		},
		{
			name:  "diamond",
			edges: map[string][]string{"a": nil, "b": {"a"}, "c": {"a"}, "d": {"b", "c"}},
		},
		{
			name:    "self loop",
			edges:   map[string][]string{"a": {"a"}},
			wantErr: true,
			isCycle: true,
		},
		{
			name:    "two node cycle",
			edges:   map[string][]string{"a": {"b"}, "b": {"a"}},
			wantErr: true,
			isCycle: true,
		},
		{
			name:    "unknown dependency",
			edges:   map[string][]string{"a": {"ghost"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAcyclic(tt.edges)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAcyclic() = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.isCycle && !errors.Is(err, ErrCycleDetected) {
				t.Errorf("error %v should wrap ErrCycleDetected", err)
			}
		})
	}
}

func TestTopologicalOrder(t *testing.T) {
	edges := map[string][]string{
		"build":  nil,
		"test":   {"build"},
		"deploy": {"test", "build"},
	}

	order, err := TopologicalOrder(edges)
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("order = %v, want 3 nodes", order)
	}

	pos := make(map[string]int)
	for i, node := range order {
		pos[node] = i
	}
	if pos["build"] > pos["test"] || pos["test"] > pos["deploy"] {
		t.Errorf("order %v violates dependencies", order)
	}
}

func TestTopologicalOrder_Cycle(t *testing.T) {
	if _, err := TopologicalOrder(map[string][]string{"a": {"b"}, "b": {"a"}}); err == nil {
		t.Error("TopologicalOrder should reject a cyclic graph")
	}
}
