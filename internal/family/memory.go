package family

import (
	"context"
	"sort"
	"sync"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/ids"
)

// InMemory is a Service backed by process memory. It powers tests and the
// API server's no-database mode.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	children map[string]Child
	tasks    map[string]Task
	rewards  map[string]Reward
}

var _ Service = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		profiles: make(map[string]Profile),
		children: make(map[string]Child),
		tasks:    make(map[string]Task),
		rewards:  make(map[string]Reward),
	}
}

// Profiles -----------------------------------------------------------------

func (m *InMemory) Profile(ctx context.Context, id string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *InMemory) UpsertProfile(ctx context.Context, p Profile) (Profile, error) {
	if p.ID == "" {
		return Profile{}, ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := nowUTC()
	if existing, ok := m.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.profiles[p.ID] = p
	return p, nil
}

// Children -----------------------------------------------------------------

func (m *InMemory) Children(ctx context.Context, scope Scope) ([]Child, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner := scope.Owner()
	var out []Child
	for _, c := range m.children {
		if c.UserID == owner {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

// AddChild creates a roster entry. Parents add children freely; a child
// account may only register itself, and doing so twice is a no-op that
// returns the existing record.
func (m *InMemory) AddChild(ctx context.Context, scope Scope, c Child) (Child, error) {
	if err := scope.Validate(); err != nil {
		return Child{}, err
	}
	if err := validateChild(c); err != nil {
		return Child{}, err
	}
	selfRegistration := scope.Role == auth.RoleChild
	if selfRegistration && c.ID != scope.UserID {
		return Child{}, ErrForbidden
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = ids.New()
	} else if existing, ok := m.children[c.ID]; ok {
		if selfRegistration && existing.UserID == scope.Owner() {
			return existing, nil
		}
		return Child{}, ErrAlreadyExists
	}
	now := nowUTC()
	c.UserID = scope.Owner()
	c.CreatedAt = now
	c.UpdatedAt = now
	m.children[c.ID] = c
	return c, nil
}

func (m *InMemory) UpdateChild(ctx context.Context, scope Scope, c Child) (Child, error) {
	if err := requireParent(scope); err != nil {
		return Child{}, err
	}
	if err := validateChild(c); err != nil {
		return Child{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.children[c.ID]
	if !ok || existing.UserID != scope.Owner() {
		return Child{}, ErrNotFound
	}
	existing.Name = c.Name
	existing.Avatar = c.Avatar
	existing.UpdatedAt = nowUTC()
	m.children[c.ID] = existing
	return existing, nil
}

// RemoveChild deletes the roster entry only. Tasks assigned to the child are
// left in place.
func (m *InMemory) RemoveChild(ctx context.Context, scope Scope, id string) error {
	if err := requireParent(scope); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.children[id]
	if !ok || existing.UserID != scope.Owner() {
		return ErrNotFound
	}
	delete(m.children, id)
	return nil
}

// Tasks --------------------------------------------------------------------

func (m *InMemory) Tasks(ctx context.Context, scope Scope) ([]Task, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner := scope.Owner()
	var out []Task
	for _, t := range m.tasks {
		if t.UserID == owner {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

func (m *InMemory) AddTask(ctx context.Context, scope Scope, t Task) (Task, error) {
	if err := requireParent(scope); err != nil {
		return Task{}, err
	}
	if err := validateTask(t); err != nil {
		return Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := nowUTC()
	t.ID = ids.New()
	t.UserID = scope.Owner()
	t.Status = TaskPending
	t.CreatedAt = now
	t.UpdatedAt = now
	m.tasks[t.ID] = t
	return t, nil
}

// UpdateTask edits the task definition. Status only moves through
// CompleteTask and ApproveTask.
func (m *InMemory) UpdateTask(ctx context.Context, scope Scope, t Task) (Task, error) {
	if err := requireParent(scope); err != nil {
		return Task{}, err
	}
	if err := validateTask(t); err != nil {
		return Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[t.ID]
	if !ok || existing.UserID != scope.Owner() {
		return Task{}, ErrNotFound
	}
	existing.Title = t.Title
	existing.Description = t.Description
	existing.Points = t.Points
	existing.Category = t.Category
	existing.ChildID = t.ChildID
	existing.DueDate = t.DueDate
	existing.UpdatedAt = nowUTC()
	m.tasks[t.ID] = existing
	return existing, nil
}

func (m *InMemory) RemoveTask(ctx context.Context, scope Scope, id string) error {
	if err := requireParent(scope); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[id]
	if !ok || existing.UserID != scope.Owner() {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

// CompleteTask moves a pending task to completed. A child may complete only
// tasks assigned to itself; a parent may complete any family task.
func (m *InMemory) CompleteTask(ctx context.Context, scope Scope, id string) (Task, error) {
	if err := scope.Validate(); err != nil {
		return Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[id]
	if !ok || existing.UserID != scope.Owner() {
		return Task{}, ErrNotFound
	}
	if scope.Role == auth.RoleChild && existing.ChildID != scope.UserID {
		return Task{}, ErrForbidden
	}
	if existing.Status != TaskPending {
		return Task{}, ErrInvalidTransition
	}
	existing.Status = TaskCompleted
	existing.UpdatedAt = nowUTC()
	m.tasks[id] = existing
	return existing, nil
}

// ApproveTask is the parent's sign-off on a completed task.
func (m *InMemory) ApproveTask(ctx context.Context, scope Scope, id string) (Task, error) {
	if err := requireParent(scope); err != nil {
		return Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[id]
	if !ok || existing.UserID != scope.Owner() {
		return Task{}, ErrNotFound
	}
	if existing.Status != TaskCompleted {
		return Task{}, ErrInvalidTransition
	}
	existing.Status = TaskApproved
	existing.UpdatedAt = nowUTC()
	m.tasks[id] = existing
	return existing, nil
}

// Rewards ------------------------------------------------------------------

func (m *InMemory) Rewards(ctx context.Context, scope Scope) ([]Reward, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner := scope.Owner()
	var out []Reward
	for _, r := range m.rewards {
		if r.UserID == owner {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

func (m *InMemory) AddReward(ctx context.Context, scope Scope, r Reward) (Reward, error) {
	if err := requireParent(scope); err != nil {
		return Reward{}, err
	}
	if err := validateReward(r); err != nil {
		return Reward{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := nowUTC()
	r.ID = ids.New()
	r.UserID = scope.Owner()
	r.CreatedAt = now
	r.UpdatedAt = now
	m.rewards[r.ID] = r
	return r, nil
}

func (m *InMemory) UpdateReward(ctx context.Context, scope Scope, r Reward) (Reward, error) {
	if err := requireParent(scope); err != nil {
		return Reward{}, err
	}
	if err := validateReward(r); err != nil {
		return Reward{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rewards[r.ID]
	if !ok || existing.UserID != scope.Owner() {
		return Reward{}, ErrNotFound
	}
	existing.Title = r.Title
	existing.Description = r.Description
	existing.Cost = r.Cost
	existing.Icon = r.Icon
	existing.UpdatedAt = nowUTC()
	m.rewards[r.ID] = existing
	return existing, nil
}

func (m *InMemory) RemoveReward(ctx context.Context, scope Scope, id string) error {
	if err := requireParent(scope); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rewards[id]
	if !ok || existing.UserID != scope.Owner() {
		return ErrNotFound
	}
	delete(m.rewards, id)
	return nil
}
