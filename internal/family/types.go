package family

import (
	"errors"
	"strings"
	"time"

	"kidboost.app/internal/auth"
)

var (
	ErrNotFound          = errors.New("family: not found")
	ErrAlreadyExists     = errors.New("family: already exists")
	ErrInvalidInput      = errors.New("family: invalid input")
	ErrForbidden         = errors.New("family: forbidden")
	ErrInvalidTransition = errors.New("family: invalid status transition")
)

// TaskStatus tracks a task through its lifecycle. Completion is the child's
// action, approval the parent's sign-off on a completed task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskApproved  TaskStatus = "approved"
)

func (s TaskStatus) Valid() bool {
	return s == TaskPending || s == TaskCompleted || s == TaskApproved
}

// Profile is per-user display data layered over identity metadata. Its ID is
// the owning user's id; a missing profile is not an error, callers fall back
// to metadata defaults.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Child is a family member record owned by a parent account. UserID is the
// owning parent's user id, never the child's.
type Child struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a chore assigned to a child. Deleting the child does not delete
// its tasks; orphaned rows simply stop matching any roster entry.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	ChildID     string     `json:"child_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Points      int        `json:"points"`
	Category    string     `json:"category"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Reward is a redeemable item in the family catalog. Redemption is not
// persisted; the catalog only defines what is on offer and at what cost.
type Reward struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Cost        int       `json:"cost"`
	Icon        string    `json:"icon"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Scope identifies who is asking and which family's rows they may touch.
// A parent owns rows keyed by their own user id; a child reads the rows
// keyed by its parent's id.
type Scope struct {
	UserID   string
	Role     auth.Role
	ParentID string
}

// Owner returns the user id that keys this scope's family rows.
func (s Scope) Owner() string {
	if s.Role == auth.RoleChild && s.ParentID != "" {
		return s.ParentID
	}
	return s.UserID
}

// Validate rejects scopes that cannot address any family.
func (s Scope) Validate() error {
	if strings.TrimSpace(s.UserID) == "" || !s.Role.Valid() {
		return ErrInvalidInput
	}
	if s.Role == auth.RoleChild && strings.TrimSpace(s.ParentID) == "" {
		return ErrForbidden
	}
	return nil
}
