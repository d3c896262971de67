package fsm

import (
	"fmt"
	"testing"
)

func TestMachine_WalksInOrder(t *testing.T) {
	m, err := New("a", "b", "c")
	if err != nil {
		t.Fatal(err)
	}

	var visited []Stage
	for _, s := range []Stage{"a", "b", "c"} {
		stage := s
		m.OnEnter(stage, func() (Stage, error) {
			visited = append(visited, stage)
			return "", nil
		})
	}

	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if len(visited) != 3 || visited[0] != "a" || visited[1] != "b" || visited[2] != "c" {
		t.Errorf("visited = %v, want [a b c]", visited)
	}
	if !m.Done() {
		t.Error("machine should report done")
	}
}

func TestMachine_ForwardRedirectSkips(t *testing.T) {
	m, err := New("gate", "skipped1", "skipped2", "final")
	if err != nil {
		t.Fatal(err)
	}

	var visited []Stage
	m.OnEnter("gate", func() (Stage, error) {
		visited = append(visited, "gate")
		return "final", nil
	})
	m.OnEnter("skipped1", func() (Stage, error) {
		visited = append(visited, "skipped1")
		return "", nil
	})
	m.OnEnter("final", func() (Stage, error) {
		visited = append(visited, "final")
		return "", nil
	})

	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if len(visited) != 2 || visited[0] != "gate" || visited[1] != "final" {
		t.Errorf("visited = %v, want [gate final]", visited)
	}
}

func TestMachine_BackwardRedirectRejected(t *testing.T) {
	m, err := New("a", "b")
	if err != nil {
		t.Fatal(err)
	}
	m.OnEnter("b", func() (Stage, error) {
		return "a", nil
	})

	if err := m.Run(); err == nil {
		t.Fatal("backward redirect should error")
	}
}

func TestMachine_ActionErrorStopsWalk(t *testing.T) {
	m, err := New("a", "b")
	if err != nil {
		t.Fatal(err)
	}
	m.OnEnter("a", func() (Stage, error) {
		return "", fmt.Errorf("boom")
	})
	ran := false
	m.OnEnter("b", func() (Stage, error) {
		ran = true
		return "", nil
	})

	if err := m.Run(); err == nil {
		t.Fatal("expected error from action")
	}
	if ran {
		t.Error("stage after failing action should not run")
	}
	if m.Done() {
		t.Error("machine should not report done after error")
	}
}

func TestMachine_DuplicateStageRejected(t *testing.T) {
	if _, err := New("a", "a"); err == nil {
		t.Fatal("duplicate stages should be rejected")
	}
}
