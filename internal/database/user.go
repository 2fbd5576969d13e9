package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/dicetable/internal/auth"
	"github.com/jason-s-yu/dicetable/internal/models"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when registering a name that already exists.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// PasswordParams is the Argon2id cost used for new hashes.
var PasswordParams = auth.DefaultParams()

const userColumns = `id, username, password, balance, is_admin, created_at`

// CreateUser hashes the password and inserts the user with the given starting balance,
// recorded as a grant in the ledger.
func (s *Store) CreateUser(ctx context.Context, user *models.User, startingBalance int64) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	hash, err := auth.HashPassword(user.Password, PasswordParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash
	user.Balance = startingBalance

	err = pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `INSERT INTO users (id, username, password, balance, is_admin)
		      VALUES ($1, $2, $3, $4, $5)
		      RETURNING created_at`
		if err := tx.QueryRow(ctx, q, user.ID, user.Username, user.Password, user.Balance, user.IsAdmin).Scan(&user.CreatedAt); err != nil {
			return err
		}
		if startingBalance > 0 {
			return insertTransaction(ctx, tx, user.ID, KindGrant, startingBalance, startingBalance, "signup")
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.Balance, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername looks a user up by display name.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
}

// GetUserByID looks a user up by id.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

// AuthenticateUser verifies a username and password and returns the user.
func (s *Store) AuthenticateUser(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	match, err := auth.VerifyPassword(password, user.Password)
	if err != nil || !match {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
