package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/family"
	"kidboost.app/internal/ids"
)

// Store implements family.Service on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ family.Service = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle, mostly for tests.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Profiles -----------------------------------------------------------------

func (s *Store) Profile(ctx context.Context, id string) (family.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, avatar, created_at, updated_at from profiles where id=$1`, id)
	var p family.Profile
	if err := row.Scan(&p.ID, &p.Name, &p.Avatar, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return family.Profile{}, family.ErrNotFound
		}
		return family.Profile{}, err
	}
	return p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p family.Profile) (family.Profile, error) {
	if p.ID == "" {
		return family.Profile{}, family.ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		insert into profiles(id, name, avatar, created_at, updated_at)
		values ($1,$2,$3,now(),now())
		on conflict (id) do update
		set name = excluded.name, avatar = excluded.avatar, updated_at = now()
		returning id, name, avatar, created_at, updated_at
	`, p.ID, p.Name, p.Avatar)
	var out family.Profile
	if err := row.Scan(&out.ID, &out.Name, &out.Avatar, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return family.Profile{}, err
	}
	return out, nil
}

// Children -----------------------------------------------------------------

const childColumns = `id, user_id, name, avatar, created_at, updated_at`

func (s *Store) Children(ctx context.Context, scope family.Scope) ([]family.Child, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+childColumns+` from children where user_id=$1 order by created_at desc, id desc`,
		scope.Owner())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []family.Child
	for rows.Next() {
		var c family.Child
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Avatar, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) AddChild(ctx context.Context, scope family.Scope, c family.Child) (family.Child, error) {
	if err := scope.Validate(); err != nil {
		return family.Child{}, err
	}
	if strings.TrimSpace(c.Name) == "" {
		return family.Child{}, family.ErrInvalidInput
	}
	selfRegistration := scope.Role == auth.RoleChild
	if selfRegistration && c.ID != scope.UserID {
		return family.Child{}, family.ErrForbidden
	}
	if c.ID == "" {
		c.ID = ids.New()
	}

	if selfRegistration {
		// Idempotent: a second registration returns the existing row. The
		// conflict branch may surface a row from another family, so the
		// owner is checked after the fact.
		row := s.db.QueryRowContext(ctx, `
			insert into children(id, user_id, name, avatar, created_at, updated_at)
			values ($1,$2,$3,$4,now(),now())
			on conflict (id) do update set updated_at = children.updated_at
			returning `+childColumns,
			c.ID, scope.Owner(), c.Name, c.Avatar)
		existing, err := scanChild(row)
		if err != nil {
			return family.Child{}, err
		}
		if existing.UserID != scope.Owner() {
			return family.Child{}, family.ErrAlreadyExists
		}
		return existing, nil
	}

	row := s.db.QueryRowContext(ctx, `
		insert into children(id, user_id, name, avatar, created_at, updated_at)
		values ($1,$2,$3,$4,now(),now())
		returning `+childColumns,
		c.ID, scope.Owner(), c.Name, c.Avatar)
	return scanChild(row)
}

func (s *Store) UpdateChild(ctx context.Context, scope family.Scope, c family.Child) (family.Child, error) {
	if err := requireParent(scope); err != nil {
		return family.Child{}, err
	}
	if strings.TrimSpace(c.Name) == "" {
		return family.Child{}, family.ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		update children set name=$3, avatar=$4, updated_at=now()
		where id=$1 and user_id=$2
		returning `+childColumns,
		c.ID, scope.Owner(), c.Name, c.Avatar)
	return scanChild(row)
}

// RemoveChild deletes the roster row only; tasks assigned to the child stay.
func (s *Store) RemoveChild(ctx context.Context, scope family.Scope, id string) error {
	if err := requireParent(scope); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`delete from children where id=$1 and user_id=$2`, id, scope.Owner())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanChild(row *sql.Row) (family.Child, error) {
	var c family.Child
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Avatar, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return family.Child{}, family.ErrNotFound
		}
		return family.Child{}, err
	}
	return c, nil
}

// Tasks --------------------------------------------------------------------

const taskColumns = `id, user_id, child_id, title, description, points, category, status, due_date, created_at, updated_at`

func (s *Store) Tasks(ctx context.Context, scope family.Scope) ([]family.Task, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+taskColumns+` from tasks where user_id=$1 order by created_at desc, id desc`,
		scope.Owner())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []family.Task
	for rows.Next() {
		var t family.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.ChildID, &t.Title, &t.Description, &t.Points, &t.Category, &t.Status, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) AddTask(ctx context.Context, scope family.Scope, t family.Task) (family.Task, error) {
	if err := requireParent(scope); err != nil {
		return family.Task{}, err
	}
	if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.ChildID) == "" || t.Points <= 0 {
		return family.Task{}, family.ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		insert into tasks(id, user_id, child_id, title, description, points, category, status, due_date, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
		returning `+taskColumns,
		ids.New(), scope.Owner(), t.ChildID, t.Title, t.Description, t.Points, t.Category, family.TaskPending, t.DueDate)
	return scanTask(row)
}

func (s *Store) UpdateTask(ctx context.Context, scope family.Scope, t family.Task) (family.Task, error) {
	if err := requireParent(scope); err != nil {
		return family.Task{}, err
	}
	if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.ChildID) == "" || t.Points <= 0 {
		return family.Task{}, family.ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		update tasks set title=$3, description=$4, points=$5, category=$6, child_id=$7, due_date=$8, updated_at=now()
		where id=$1 and user_id=$2
		returning `+taskColumns,
		t.ID, scope.Owner(), t.Title, t.Description, t.Points, t.Category, t.ChildID, t.DueDate)
	return scanTask(row)
}

func (s *Store) RemoveTask(ctx context.Context, scope family.Scope, id string) error {
	if err := requireParent(scope); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`delete from tasks where id=$1 and user_id=$2`, id, scope.Owner())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) CompleteTask(ctx context.Context, scope family.Scope, id string) (family.Task, error) {
	if err := scope.Validate(); err != nil {
		return family.Task{}, err
	}
	current, err := s.findTask(ctx, id, scope.Owner())
	if err != nil {
		return family.Task{}, err
	}
	if scope.Role == auth.RoleChild && current.ChildID != scope.UserID {
		return family.Task{}, family.ErrForbidden
	}
	return s.transitionTask(ctx, id, scope.Owner(), family.TaskPending, family.TaskCompleted)
}

func (s *Store) ApproveTask(ctx context.Context, scope family.Scope, id string) (family.Task, error) {
	if err := requireParent(scope); err != nil {
		return family.Task{}, err
	}
	if _, err := s.findTask(ctx, id, scope.Owner()); err != nil {
		return family.Task{}, err
	}
	return s.transitionTask(ctx, id, scope.Owner(), family.TaskCompleted, family.TaskApproved)
}

func (s *Store) findTask(ctx context.Context, id, owner string) (family.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+taskColumns+` from tasks where id=$1 and user_id=$2`, id, owner)
	return scanTask(row)
}

// transitionTask applies a guarded status change. The where clause carries
// the expected current status so concurrent writers cannot double-apply.
func (s *Store) transitionTask(ctx context.Context, id, owner string, from, to family.TaskStatus) (family.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		update tasks set status=$4, updated_at=now()
		where id=$1 and user_id=$2 and status=$3
		returning `+taskColumns,
		id, owner, from, to)
	t, err := scanTask(row)
	if errors.Is(err, family.ErrNotFound) {
		// Row exists (checked by caller) but the status guard failed.
		return family.Task{}, family.ErrInvalidTransition
	}
	return t, err
}

func scanTask(row *sql.Row) (family.Task, error) {
	var t family.Task
	if err := row.Scan(&t.ID, &t.UserID, &t.ChildID, &t.Title, &t.Description, &t.Points, &t.Category, &t.Status, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return family.Task{}, family.ErrNotFound
		}
		return family.Task{}, err
	}
	return t, nil
}

// Rewards ------------------------------------------------------------------

const rewardColumns = `id, user_id, title, description, cost, icon, created_at, updated_at`

func (s *Store) Rewards(ctx context.Context, scope family.Scope) ([]family.Reward, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+rewardColumns+` from rewards where user_id=$1 order by created_at desc, id desc`,
		scope.Owner())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []family.Reward
	for rows.Next() {
		var r family.Reward
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &r.Cost, &r.Icon, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) AddReward(ctx context.Context, scope family.Scope, r family.Reward) (family.Reward, error) {
	if err := requireParent(scope); err != nil {
		return family.Reward{}, err
	}
	if strings.TrimSpace(r.Title) == "" || r.Cost <= 0 {
		return family.Reward{}, family.ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		insert into rewards(id, user_id, title, description, cost, icon, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,now(),now())
		returning `+rewardColumns,
		ids.New(), scope.Owner(), r.Title, r.Description, r.Cost, r.Icon)
	return scanReward(row)
}

func (s *Store) UpdateReward(ctx context.Context, scope family.Scope, r family.Reward) (family.Reward, error) {
	if err := requireParent(scope); err != nil {
		return family.Reward{}, err
	}
	if strings.TrimSpace(r.Title) == "" || r.Cost <= 0 {
		return family.Reward{}, family.ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		update rewards set title=$3, description=$4, cost=$5, icon=$6, updated_at=now()
		where id=$1 and user_id=$2
		returning `+rewardColumns,
		r.ID, scope.Owner(), r.Title, r.Description, r.Cost, r.Icon)
	return scanReward(row)
}

func (s *Store) RemoveReward(ctx context.Context, scope family.Scope, id string) error {
	if err := requireParent(scope); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`delete from rewards where id=$1 and user_id=$2`, id, scope.Owner())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanReward(row *sql.Row) (family.Reward, error) {
	var r family.Reward
	if err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &r.Cost, &r.Icon, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return family.Reward{}, family.ErrNotFound
		}
		return family.Reward{}, err
	}
	return r, nil
}

// Helpers ------------------------------------------------------------------

func requireParent(scope family.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if scope.Role != auth.RoleParent {
		return family.ErrForbidden
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return family.ErrNotFound
	}
	return nil
}
