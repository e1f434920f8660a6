package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context context.Context) UserStore { return &userStore{db: s.db} }
func (s *PGStore) RefreshTokens(context context.Context) RefreshTokenStore {
	return &refreshTokenStore{db: s.db}
}

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

const userColumns = `id, email, password_hash, status, metadata, confirm_token_hash, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u User) error {
	meta, _ := json.Marshal(u.Metadata)
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, status, metadata, confirm_token_hash, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Email, u.PasswordHash, u.Status, meta, u.ConfirmTokenHash, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email)=lower($1)`, email)
	return scanUser(row)
}

func (s *userStore) FindByConfirmToken(ctx context.Context, tokenHash string) (User, error) {
	if tokenHash == "" {
		return User{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where confirm_token_hash=$1`, tokenHash)
	return scanUser(row)
}

func (s *userStore) Activate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set status=$2, confirm_token_hash='', updated_at=now() where id=$1`,
		id, StatusActive,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) UpdateMetadata(ctx context.Context, id string, meta UserMetadata) (User, error) {
	raw, _ := json.Marshal(meta)
	row := s.db.QueryRowContext(ctx,
		`update users set metadata=$2, updated_at=now() where id=$1 returning `+userColumns,
		id, raw,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (User, error) {
	var (
		u        User
		metadata []byte
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Status, &metadata, &u.ConfirmTokenHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	_ = json.Unmarshal(metadata, &u.Metadata)
	return u, nil
}

// Refresh token store ------------------------------------------------------
type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Create(ctx context.Context, t RefreshToken) error {
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, token_hash, expires_at, created_at, revoked)
		 values($1,$2,$3,$4,$5,$6)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt, t.Revoked,
	)
	return err
}

func (s *refreshTokenStore) Find(ctx context.Context, id string) (RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, token_hash, expires_at, created_at, revoked from refresh_tokens where id=$1`, id)
	var t RefreshToken
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.Revoked); err != nil {
		if err == sql.ErrNoRows {
			return RefreshToken{}, ErrNotFound
		}
		return RefreshToken{}, err
	}
	return t, nil
}

func (s *refreshTokenStore) MarkRevoked(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *refreshTokenStore) MarkRevokedByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true where user_id=$1 and revoked=false`, userID)
	return err
}

func (s *refreshTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens where expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
