package demo

import (
	"context"
	"math/rand"
	"time"

	"kidboost.app/internal/events"
	"kidboost.app/internal/family"
)

// Seed populates a family with the sample roster, tasks and rewards. Tasks
// flagged completed in the catalog are completed through the service so the
// rows go through the normal lifecycle. Seed is meant for empty families;
// rerunning it adds duplicate rows.
func Seed(ctx context.Context, svc family.Service, scope family.Scope) error {
	var children []family.Child
	for _, name := range ChildNames {
		child, err := svc.AddChild(ctx, scope, family.Child{
			Name: name,
		})
		if err != nil {
			return err
		}
		children = append(children, child)
	}

	for i, fixture := range TaskCatalog {
		child := children[i*len(children)/len(TaskCatalog)]
		task, err := svc.AddTask(ctx, scope, NewTask(fixture, child.ID))
		if err != nil {
			return err
		}
		if fixture.Completed {
			if _, err := svc.CompleteTask(ctx, scope, task.ID); err != nil {
				return err
			}
		}
	}

	for _, fixture := range RewardCatalog {
		if _, err := svc.AddReward(ctx, scope, NewReward(fixture)); err != nil {
			return err
		}
	}
	return nil
}

// Generator drives random family activity so streams and dashboards have
// something to show during development.
type Generator struct {
	svc   family.Service
	bus   *events.Bus
	scope family.Scope
	rnd   *rand.Rand
}

// NewGenerator builds a generator acting as the given parent. bus may be nil
// when no stream consumers exist.
func NewGenerator(svc family.Service, bus *events.Bus, scope family.Scope) *Generator {
	return &Generator{
		svc:   svc,
		bus:   bus,
		scope: scope,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start emits one random action per interval until the returned stop
// function is called.
func (g *Generator) Start(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Step(ctx)
			}
		}
	}()
	return cancel
}

// Step performs one random action: complete a pending task, approve a
// completed one, or assign a fresh task from the catalog. Errors are
// swallowed; the next tick tries again.
func (g *Generator) Step(ctx context.Context) {
	tasks, err := g.svc.Tasks(ctx, g.scope)
	if err != nil {
		return
	}

	if task, ok := g.pick(tasks, family.TaskPending); ok && g.rnd.Intn(2) == 0 {
		if _, err := g.svc.CompleteTask(ctx, g.scope, task.ID); err == nil {
			g.publish(events.EntityTask, events.ActionCompleted, task.ID)
		}
		return
	}
	if task, ok := g.pick(tasks, family.TaskCompleted); ok && g.rnd.Intn(2) == 0 {
		if _, err := g.svc.ApproveTask(ctx, g.scope, task.ID); err == nil {
			g.publish(events.EntityTask, events.ActionApproved, task.ID)
		}
		return
	}

	children, err := g.svc.Children(ctx, g.scope)
	if err != nil || len(children) == 0 {
		return
	}
	fixture := TaskCatalog[g.rnd.Intn(len(TaskCatalog))]
	fixture.Completed = false
	child := children[g.rnd.Intn(len(children))]
	if task, err := g.svc.AddTask(ctx, g.scope, NewTask(fixture, child.ID)); err == nil {
		g.publish(events.EntityTask, events.ActionCreated, task.ID)
	}
}

func (g *Generator) pick(tasks []family.Task, status family.TaskStatus) (family.Task, bool) {
	var matching []family.Task
	for _, t := range tasks {
		if t.Status == status {
			matching = append(matching, t)
		}
	}
	if len(matching) == 0 {
		return family.Task{}, false
	}
	return matching[g.rnd.Intn(len(matching))], true
}

func (g *Generator) publish(entity, action, id string) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(events.Change{
		OwnerID:   g.scope.Owner(),
		Entity:    entity,
		Action:    action,
		EntityID:  id,
		Timestamp: time.Now().UTC(),
	})
}
