package postgres

import (
	"context"
	"time"

	"smartfarm.io/farm/internal/domain"
)

const userColumns = `id, name, email, username, image, role, password_hash, created_at, updated_at`

type userRow struct {
	ID           string    `db:"id"`
	Name         *string   `db:"name"`
	Email        *string   `db:"email"`
	Username     *string   `db:"username"`
	Image        *string   `db:"image"`
	Role         string    `db:"role"`
	PasswordHash *string   `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *userRow) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Name:         derefString(r.Name),
		Email:        derefString(r.Email),
		Username:     derefString(r.Username),
		Image:        derefString(r.Image),
		Role:         domain.Role(r.Role),
		PasswordHash: derefString(r.PasswordHash),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type accountRow struct {
	ID                string    `db:"id"`
	UserID            string    `db:"user_id"`
	Provider          string    `db:"provider"`
	ProviderAccountID string    `db:"provider_account_id"`
	Type              string    `db:"type"`
	CreatedAt         time.Time `db:"created_at"`
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, nullString(u.Name), nullString(u.Email), nullString(u.Username), nullString(u.Image),
		string(u.Role), nullString(u.PasswordHash), u.CreatedAt, u.UpdatedAt,
	)
	return mapWriteErr("insert user", err)
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	rows, err := s.q.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	row, err := collectOne[userRow](rows, err, "get user")
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	rows, err := s.q.Query(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	row, err := collectOne[userRow](rows, err, "get user by username")
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE users
		SET name = $2, email = $3, username = $4, image = $5, role = $6, password_hash = $7, updated_at = $8
		WHERE id = $1`,
		u.ID, nullString(u.Name), nullString(u.Email), nullString(u.Username), nullString(u.Image),
		string(u.Role), nullString(u.PasswordHash), u.UpdatedAt,
	)
	return affectOne("update user", tag, err, mapWriteErr)
}

func (s *Store) CountUsersByRole(ctx context.Context, role domain.Role) (int, error) {
	return count(ctx, s.q, "count users", `SELECT count(*) FROM users WHERE role = $1`, string(role))
}

func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO accounts (id, user_id, provider, provider_account_id, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.Provider, a.ProviderAccountID, a.Type, a.CreatedAt,
	)
	return mapWriteErr("insert account", err)
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, provider, provider_account_id, type, created_at
		FROM accounts WHERE user_id = $1 ORDER BY created_at, id`, userID)
	got, err := collectAll[accountRow](rows, err, "list accounts")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Account, len(got))
	for i, r := range got {
		out[i] = domain.Account{
			ID:                r.ID,
			UserID:            r.UserID,
			Provider:          r.Provider,
			ProviderAccountID: r.ProviderAccountID,
			Type:              r.Type,
			CreatedAt:         r.CreatedAt,
		}
	}
	return out, nil
}

func (s *Store) DeleteAccountsByProvider(ctx context.Context, userID, provider string) (int, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM accounts WHERE user_id = $1 AND provider = $2`, userID, provider)
	if err != nil {
		return 0, mapDeleteErr("delete accounts", err)
	}
	return int(tag.RowsAffected()), nil
}
