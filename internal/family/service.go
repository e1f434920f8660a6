package family

import (
	"context"
	"strings"
	"time"

	"kidboost.app/internal/auth"
)

// Service is the family data plane: roster, tasks and the reward catalog,
// plus per-user profiles.
type Service interface {
	Profile(ctx context.Context, id string) (Profile, error)
	UpsertProfile(ctx context.Context, p Profile) (Profile, error)

	Children(ctx context.Context, scope Scope) ([]Child, error)
	AddChild(ctx context.Context, scope Scope, c Child) (Child, error)
	UpdateChild(ctx context.Context, scope Scope, c Child) (Child, error)
	RemoveChild(ctx context.Context, scope Scope, id string) error

	Tasks(ctx context.Context, scope Scope) ([]Task, error)
	AddTask(ctx context.Context, scope Scope, t Task) (Task, error)
	UpdateTask(ctx context.Context, scope Scope, t Task) (Task, error)
	RemoveTask(ctx context.Context, scope Scope, id string) error
	CompleteTask(ctx context.Context, scope Scope, id string) (Task, error)
	ApproveTask(ctx context.Context, scope Scope, id string) (Task, error)

	Rewards(ctx context.Context, scope Scope) ([]Reward, error)
	AddReward(ctx context.Context, scope Scope, r Reward) (Reward, error)
	UpdateReward(ctx context.Context, scope Scope, r Reward) (Reward, error)
	RemoveReward(ctx context.Context, scope Scope, id string) error
}

func validateChild(c Child) error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidInput
	}
	return nil
}

func validateTask(t Task) error {
	if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.ChildID) == "" || t.Points <= 0 {
		return ErrInvalidInput
	}
	return nil
}

func validateReward(r Reward) error {
	if strings.TrimSpace(r.Title) == "" || r.Cost <= 0 {
		return ErrInvalidInput
	}
	return nil
}

// requireParent gates mutations that only the family's parent may perform.
func requireParent(scope Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if scope.Role != auth.RoleParent {
		return ErrForbidden
	}
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }

// newerFirst orders list rows newest first. ULIDs encode creation time, so
// the id comparison breaks same-timestamp ties deterministically.
func newerFirst(ti time.Time, idi string, tj time.Time, idj string) bool {
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return idi > idj
}
