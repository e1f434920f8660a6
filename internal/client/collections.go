package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/family"
)

// CollectionState tracks a collection through its loading lifecycle.
type CollectionState string

const (
	StateUninitialized CollectionState = "uninitialized"
	StateLoading       CollectionState = "loading"
	StateReady         CollectionState = "ready"
	StateError         CollectionState = "error"
)

// Collection caches one list of server rows together with its load state.
// Mutations write to the server first; only a confirmed write patches the
// cache, so a failure leaves it untouched.
type Collection[T any] struct {
	mu    sync.Mutex
	state CollectionState
	items []T
	err   error
}

func newCollection[T any]() *Collection[T] {
	return &Collection[T]{state: StateUninitialized}
}

// State returns the collection's lifecycle state.
func (c *Collection[T]) State() CollectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the last load error, if the collection is in the error state.
func (c *Collection[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Items returns a copy of the cached rows.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// load runs fetch and installs the result, moving through
// loading -> ready | error.
func (c *Collection[T]) load(fetch func() ([]T, error)) error {
	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()

	items, err := fetch()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateError
		c.err = err
		return err
	}
	c.state = StateReady
	c.err = nil
	c.items = items
	return nil
}

// mutate runs the server write and applies patch to the cache only after it
// succeeds.
func (c *Collection[T]) mutate(commit func() error, patch func([]T) []T) error {
	if err := commit(); err != nil {
		return err
	}
	c.mu.Lock()
	c.items = patch(c.items)
	c.mu.Unlock()
	return nil
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

// Children ------------------------------------------------------------

// ChildrenCollection is the family roster as the client sees it.
type ChildrenCollection struct {
	*Collection[family.Child]
	client     *Client
	regMu      sync.Mutex
	registered bool
}

// Children returns a roster collection bound to this client.
func (c *Client) Children() *ChildrenCollection {
	return &ChildrenCollection{Collection: newCollection[family.Child](), client: c}
}

func (cc *ChildrenCollection) Refresh(ctx context.Context) error {
	return cc.load(func() ([]family.Child, error) {
		var res listResponse[family.Child]
		if err := cc.client.do(ctx, http.MethodGet, "/v1/children", nil, &res); err != nil {
			return nil, err
		}
		return res.Items, nil
	})
}

func (cc *ChildrenCollection) Add(ctx context.Context, name, avatar string) (family.Child, error) {
	var out family.Child
	err := cc.client.do(ctx, http.MethodPost, "/v1/children", map[string]any{
		"name":   name,
		"avatar": avatar,
	}, &out)
	if err != nil {
		return family.Child{}, err
	}
	cc.mu.Lock()
	cc.items = append([]family.Child{out}, cc.items...)
	cc.mu.Unlock()
	return out, nil
}

func (cc *ChildrenCollection) Update(ctx context.Context, child family.Child) error {
	var out family.Child
	return cc.mutate(
		func() error {
			return cc.client.do(ctx, http.MethodPut, "/v1/children/"+child.ID, map[string]any{
				"name":   child.Name,
				"avatar": child.Avatar,
			}, &out)
		},
		func(items []family.Child) []family.Child {
			for i := range items {
				if items[i].ID == out.ID {
					items[i] = out
				}
			}
			return items
		},
	)
}

func (cc *ChildrenCollection) Remove(ctx context.Context, id string) error {
	return cc.mutate(
		func() error {
			return cc.client.do(ctx, http.MethodDelete, "/v1/children/"+id, nil, nil)
		},
		func(items []family.Child) []family.Child {
			out := items[:0]
			for _, c := range items {
				if c.ID != id {
					out = append(out, c)
				}
			}
			return out
		},
	)
}

// EnsureSelfRegistered creates the signed-in child's own roster entry. It is
// a no-op for parents. The server upsert is idempotent, so the call retries
// after a failed attempt until one registration succeeds.
func (cc *ChildrenCollection) EnsureSelfRegistered(ctx context.Context) error {
	user := cc.client.session.Current()
	if user == nil || user.Role != auth.RoleChild {
		return nil
	}
	cc.regMu.Lock()
	defer cc.regMu.Unlock()
	if cc.registered {
		return nil
	}

	var out family.Child
	err := cc.client.do(ctx, http.MethodPost, "/v1/children", map[string]any{
		"id":     user.ID,
		"name":   user.Name,
		"avatar": user.Avatar,
	}, &out)
	if err != nil {
		return err
	}
	cc.registered = true

	cc.mu.Lock()
	found := false
	for i := range cc.items {
		if cc.items[i].ID == out.ID {
			cc.items[i] = out
			found = true
		}
	}
	if !found {
		cc.items = append([]family.Child{out}, cc.items...)
	}
	cc.mu.Unlock()
	return nil
}

// Tasks ---------------------------------------------------------------

// TasksCollection is the family's task list with derived point queries.
type TasksCollection struct {
	*Collection[family.Task]
	client *Client
}

func (c *Client) Tasks() *TasksCollection {
	return &TasksCollection{Collection: newCollection[family.Task](), client: c}
}

func (tc *TasksCollection) Refresh(ctx context.Context) error {
	return tc.load(func() ([]family.Task, error) {
		var res listResponse[family.Task]
		if err := tc.client.do(ctx, http.MethodGet, "/v1/tasks", nil, &res); err != nil {
			return nil, err
		}
		return res.Items, nil
	})
}

func (tc *TasksCollection) Add(ctx context.Context, childID, title, category string, points int) (family.Task, error) {
	var out family.Task
	err := tc.client.do(ctx, http.MethodPost, "/v1/tasks", map[string]any{
		"child_id": childID,
		"title":    title,
		"category": category,
		"points":   points,
	}, &out)
	if err != nil {
		return family.Task{}, err
	}
	tc.mu.Lock()
	tc.items = append([]family.Task{out}, tc.items...)
	tc.mu.Unlock()
	return out, nil
}

// Complete marks a task completed, patching the cache with the server row.
func (tc *TasksCollection) Complete(ctx context.Context, id string) error {
	return tc.transition(ctx, id, "/complete")
}

// Approve is the parent's sign-off on a completed task.
func (tc *TasksCollection) Approve(ctx context.Context, id string) error {
	return tc.transition(ctx, id, "/approve")
}

func (tc *TasksCollection) transition(ctx context.Context, id, action string) error {
	var out family.Task
	return tc.mutate(
		func() error {
			return tc.client.do(ctx, http.MethodPost, "/v1/tasks/"+id+action, nil, &out)
		},
		func(items []family.Task) []family.Task {
			for i := range items {
				if items[i].ID == out.ID {
					items[i] = out
				}
			}
			return items
		},
	)
}

func (tc *TasksCollection) Remove(ctx context.Context, id string) error {
	return tc.mutate(
		func() error {
			return tc.client.do(ctx, http.MethodDelete, "/v1/tasks/"+id, nil, nil)
		},
		func(items []family.Task) []family.Task {
			out := items[:0]
			for _, t := range items {
				if t.ID != id {
					out = append(out, t)
				}
			}
			return out
		},
	)
}

// For returns the cached tasks assigned to a child.
func (tc *TasksCollection) For(childID string) []family.Task {
	return family.TasksForChild(tc.Items(), childID)
}

// AvailablePoints returns the child's spendable balance.
func (tc *TasksCollection) AvailablePoints(childID string) int {
	return family.AvailablePoints(tc.Items(), childID)
}

// Rewards -------------------------------------------------------------

// RewardsCollection is the family reward catalog.
type RewardsCollection struct {
	*Collection[family.Reward]
	client *Client
}

func (c *Client) Rewards() *RewardsCollection {
	return &RewardsCollection{Collection: newCollection[family.Reward](), client: c}
}

func (rc *RewardsCollection) Refresh(ctx context.Context) error {
	return rc.load(func() ([]family.Reward, error) {
		var res listResponse[family.Reward]
		if err := rc.client.do(ctx, http.MethodGet, "/v1/rewards", nil, &res); err != nil {
			return nil, err
		}
		return res.Items, nil
	})
}

func (rc *RewardsCollection) Add(ctx context.Context, title, icon string, cost int) (family.Reward, error) {
	var out family.Reward
	err := rc.client.do(ctx, http.MethodPost, "/v1/rewards", map[string]any{
		"title": title,
		"icon":  icon,
		"cost":  cost,
	}, &out)
	if err != nil {
		return family.Reward{}, err
	}
	rc.mu.Lock()
	rc.items = append([]family.Reward{out}, rc.items...)
	rc.mu.Unlock()
	return out, nil
}

func (rc *RewardsCollection) Remove(ctx context.Context, id string) error {
	return rc.mutate(
		func() error {
			return rc.client.do(ctx, http.MethodDelete, "/v1/rewards/"+id, nil, nil)
		},
		func(items []family.Reward) []family.Reward {
			out := items[:0]
			for _, r := range items {
				if r.ID != id {
					out = append(out, r)
				}
			}
			return out
		},
	)
}

// ErrInsufficientPoints is returned when a redemption costs more than the
// child has earned.
var ErrInsufficientPoints = errors.New("client: insufficient points")

// Redeem simulates redeeming a reward. Nothing is persisted; after the
// delay the callback fires, matching the app's celebratory flow. The
// returned cancel function aborts a pending redemption.
func (rc *RewardsCollection) Redeem(reward family.Reward, availablePoints int, delay time.Duration, done func(family.Reward)) (func(), error) {
	if availablePoints < reward.Cost {
		return nil, ErrInsufficientPoints
	}
	timer := time.AfterFunc(delay, func() {
		if done != nil {
			done(reward)
		}
	})
	return func() { timer.Stop() }, nil
}
