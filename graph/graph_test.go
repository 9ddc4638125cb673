package graph

import (
	"context"
	"errors"
	"testing"
)

func passthrough(_ context.Context, s State) (State, error) { return s, nil }

func TestNewGraph(t *testing.T) {
	g := NewGraph()
	if g == nil {
		t.Errorf("NewGraph returned nil")
	}
}

func TestAddNode(t *testing.T) {
	g := NewGraph()

	g.AddNode(&Node{Name: "test_node", Type: NodeTypeCustom, Execute: passthrough})

	retrieved, err := g.GetNode("test_node")
	if err != nil {
		t.Fatalf("Failed to retrieve added node: %v", err)
	}
	if retrieved.Name != "test_node" {
		t.Errorf("Retrieved node name mismatch")
	}
}

func TestAddNodeEmptyName(t *testing.T) {
	g := NewGraph()

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected function to panic, but it did not")
		} else if r != "node name cannot be empty" {
			t.Errorf("Expected panic value to be 'node name cannot be empty', but got %v", r)
		}
	}()

	g.AddNode(&Node{Name: "", Type: NodeTypeCustom, Execute: passthrough})
}

func TestAddNodeDuplicate(t *testing.T) {
	g := NewGraph()

	g.AddNode(&Node{Name: "dup_node", Type: NodeTypeCustom, Execute: passthrough})

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected function to panic, but it did not")
		} else if r != "node dup_node already exists" {
			t.Errorf("Expected panic value to be 'node dup_node already exists', but got %v", r)
		}
	}()
	g.AddNode(&Node{Name: "dup_node", Type: NodeTypeCustom, Execute: passthrough})
}

func TestAutoSetStartNode(t *testing.T) {
	g := NewGraph()

	g.AddNode(&Node{Name: "start", Type: NodeTypeStart, Execute: passthrough})

	if g.startNode != "start" {
		t.Errorf("Start node not automatically set")
	}
}

func TestExecuteLinear(t *testing.T) {
	var order []string
	record := func(name string) NodeFunc {
		return func(_ context.Context, s State) (State, error) {
			order = append(order, name)
			return s, nil
		}
	}

	g := NewBuilder().
		AddNode("a", NodeTypeStart, record("a")).
		AddNode("b", NodeTypeCustom, record("b")).
		AddNode("c", NodeTypeEnd, record("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		SetStart("a").
		Build()

	_, err := g.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestExecuteConditionalEdges(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeTypeStart, func(_ context.Context, s State) (State, error) {
			s["value"] = 7
			return s, nil
		}).
		AddNode("big", NodeTypeCustom, func(_ context.Context, s State) (State, error) {
			s["branch"] = "big"
			return s, nil
		}).
		AddNode("small", NodeTypeCustom, func(_ context.Context, s State) (State, error) {
			s["branch"] = "small"
			return s, nil
		}).
		AddNode("end", NodeTypeEnd, passthrough).
		AddConditionalEdges("start", func(_ context.Context, s State) (string, error) {
			if s["value"].(int) > 5 {
				return "big", nil
			}
			return "small", nil
		}, map[string]string{"big": "big", "small": "small"}).
		AddEdge("big", "end").
		AddEdge("small", "end").
		SetStart("start").
		Build()

	final, err := g.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if final["branch"] != "big" {
		t.Errorf("expected branch 'big', got %v", final["branch"])
	}
}

func TestExecuteBoundedLoop(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeTypeStart, func(_ context.Context, s State) (State, error) {
			s["count"] = 0
			return s, nil
		}).
		AddNode("work", NodeTypeCustom, func(_ context.Context, s State) (State, error) {
			s["count"] = s["count"].(int) + 1
			return s, nil
		}).
		AddNode("end", NodeTypeEnd, passthrough).
		AddEdge("start", "work").
		AddConditionalEdges("work", func(_ context.Context, s State) (string, error) {
			if s["count"].(int) < 3 {
				return "again", nil
			}
			return "done", nil
		}, map[string]string{"again": "work", "done": "end"}).
		SetStart("start").
		Build()

	final, err := g.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if final["count"] != 3 {
		t.Errorf("expected 3 loop iterations, got %v", final["count"])
	}
}

func TestExecuteInfiniteLoopDetection(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeTypeStart, passthrough).
		AddNode("spin", NodeTypeCustom, passthrough).
		AddNode("end", NodeTypeEnd, passthrough).
		AddEdge("start", "spin").
		AddEdge("spin", "spin").
		SetStart("start").
		SetMaxVisits(5).
		Build()

	_, err := g.Execute(context.Background(), nil)
	if err == nil {
		t.Fatalf("expected infinite loop error")
	}
}

func TestExecuteNodeError(t *testing.T) {
	boom := errors.New("boom")
	g := NewBuilder().
		AddNode("start", NodeTypeStart, func(_ context.Context, s State) (State, error) {
			return nil, boom
		}).
		AddNode("end", NodeTypeEnd, passthrough).
		AddEdge("start", "end").
		SetStart("start").
		Build()

	_, err := g.Execute(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped node error, got %v", err)
	}
}

func TestExecuteMissingEdgeLabel(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeTypeStart, passthrough).
		AddNode("end", NodeTypeEnd, passthrough).
		AddConditionalEdges("start", func(_ context.Context, s State) (string, error) {
			return "nowhere", nil
		}, map[string]string{"done": "end"}).
		SetStart("start").
		Build()

	_, err := g.Execute(context.Background(), nil)
	if err == nil {
		t.Fatalf("expected missing edge label error")
	}
}

func TestExecuteNoStart(t *testing.T) {
	g := NewGraph()
	_, err := g.Execute(context.Background(), nil)
	if err == nil {
		t.Fatalf("expected error when start node not set")
	}
}
