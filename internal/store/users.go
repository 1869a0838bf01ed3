package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

const userColumns = `id, email, billing_id, authentication_id, created_at, updated_at, active`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.BillingID, &u.AuthenticationID, &u.CreatedAt, &u.UpdatedAt, &u.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetOrCreateUser returns the user for authID, creating it on Tier 0 the
// first time the identity is seen.
func (s *Store) GetOrCreateUser(ctx context.Context, authID, email string) (User, error) {
	return scanUser(s.DB.QueryRowContext(ctx, `
        INSERT INTO users (email, billing_id, authentication_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (authentication_id)
        DO UPDATE SET email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE users.email END
        RETURNING `+userColumns,
		strings.TrimSpace(email), DefaultTier, authID))
}

// ListActiveUsers returns users in id order.
func (s *Store) ListActiveUsers(ctx context.Context) ([]User, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUserBilling sets the billing tier for every active user with email
// and returns the previous tier.
func (s *Store) UpdateUserBilling(ctx context.Context, email, billingID string) (string, error) {
	var prev string
	err := s.DB.QueryRowContext(ctx, `
        WITH prev AS (
            SELECT id, billing_id FROM users WHERE lower(email)=lower($1) AND active ORDER BY id LIMIT 1
        )
        UPDATE users u SET billing_id=$2, updated_at=now()
        FROM prev WHERE u.id = prev.id
        RETURNING prev.billing_id`, email, billingID).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return prev, err
}
