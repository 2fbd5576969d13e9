package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/dicetable/internal/auth"
)

// UpdateUserPassword replaces a user's password hash.
func (s *Store) UpdateUserPassword(ctx context.Context, id uuid.UUID, password string) error {
	hashed, err := auth.HashPassword(password, PasswordParams)
	if err != nil {
		return err
	}

	err = pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, e := tx.Exec(ctx, `UPDATE users SET password = $1 WHERE id = $2`, hashed, id)
		if e != nil {
			return e
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update user password: %w", err)
	}
	return nil
}

// SetAdmin toggles the admin flag.
func (s *Store) SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE users SET is_admin = $1 WHERE id = $2`, admin, id)
	if err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
