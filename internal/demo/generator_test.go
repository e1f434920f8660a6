package demo

import (
	"context"
	"testing"
	"time"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/family"
)

func TestSeedPopulatesFamily(t *testing.T) {
	svc := family.NewInMemory()
	scope := family.Scope{UserID: "parent-1", Role: auth.RoleParent}
	ctx := context.Background()

	if err := Seed(ctx, svc, scope); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	children, err := svc.Children(ctx, scope)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != len(ChildNames) {
		t.Fatalf("expected %d children, got %d", len(ChildNames), len(children))
	}

	tasks, err := svc.Tasks(ctx, scope)
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != len(TaskCatalog) {
		t.Fatalf("expected %d tasks, got %d", len(TaskCatalog), len(tasks))
	}
	var completed int
	for _, task := range tasks {
		if task.Status == family.TaskCompleted {
			completed++
		}
	}
	if completed != 2 {
		t.Fatalf("expected 2 completed tasks, got %d", completed)
	}

	rewards, err := svc.Rewards(ctx, scope)
	if err != nil {
		t.Fatalf("Rewards: %v", err)
	}
	if len(rewards) != len(RewardCatalog) {
		t.Fatalf("expected %d rewards, got %d", len(RewardCatalog), len(rewards))
	}
}

func TestGeneratorStepMakesProgress(t *testing.T) {
	svc := family.NewInMemory()
	scope := family.Scope{UserID: "parent-1", Role: auth.RoleParent}
	ctx := context.Background()
	if err := Seed(ctx, svc, scope); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	before, _ := svc.Tasks(ctx, scope)

	gen := NewGenerator(svc, nil, scope)
	for i := 0; i < 20; i++ {
		gen.Step(ctx)
	}

	after, err := svc.Tasks(ctx, scope)
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	changed := len(after) != len(before)
	if !changed {
		counts := func(tasks []family.Task) map[family.TaskStatus]int {
			m := make(map[family.TaskStatus]int)
			for _, task := range tasks {
				m[task.Status]++
			}
			return m
		}
		b, a := counts(before), counts(after)
		for _, s := range []family.TaskStatus{family.TaskPending, family.TaskCompleted, family.TaskApproved} {
			if b[s] != a[s] {
				changed = true
			}
		}
	}
	if !changed {
		t.Fatal("20 steps produced no activity")
	}
}

func TestGeneratorStopsOnCancel(t *testing.T) {
	svc := family.NewInMemory()
	scope := family.Scope{UserID: "parent-1", Role: auth.RoleParent}
	gen := NewGenerator(svc, nil, scope)

	stop := gen.Start(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	stop()
	// A second call after stop must not panic.
	gen.Step(context.Background())
}

func TestCategoryEmoji(t *testing.T) {
	if CategoryEmoji("chores") == CategoryEmoji("unknown") {
		t.Fatal("known category should map to its own emoji")
	}
	if CategoryEmoji("nope") != "✨" {
		t.Fatalf("unexpected fallback emoji: %q", CategoryEmoji("nope"))
	}
}
