package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/dicetable/internal/lobby"
	"github.com/jason-s-yu/dicetable/internal/models"
)

// KindGrant marks balance added by an operator or at signup.
const KindGrant = "grant"

// ErrInsufficientBalance is returned when a debit would take the balance below zero.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrInvalidAmount is returned for non-positive transfer amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// Debit atomically takes t.Amount from the user. The conditional update and the
// transaction row commit together, or neither does.
func (s *Store) Debit(ctx context.Context, t lobby.Transfer) (int64, error) {
	if t.Amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `UPDATE users SET balance = balance - $1
		      WHERE id = $2 AND balance >= $1
		      RETURNING balance`
		if err := tx.QueryRow(ctx, q, t.Amount, t.UserID).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInsufficientBalance
			}
			return err
		}
		return insertTransaction(ctx, tx, t.UserID, t.Kind, -t.Amount, balance, t.Reference)
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return 0, err
		}
		return 0, fmt.Errorf("debit failed: %w", err)
	}
	return balance, nil
}

// Credit adds t.Amount to the user.
func (s *Store) Credit(ctx context.Context, t lobby.Transfer) (int64, error) {
	if t.Amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `UPDATE users SET balance = balance + $1 WHERE id = $2 RETURNING balance`
		if err := tx.QueryRow(ctx, q, t.Amount, t.UserID).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		return insertTransaction(ctx, tx, t.UserID, t.Kind, t.Amount, balance, t.Reference)
	})
	if err != nil {
		return 0, fmt.Errorf("credit failed: %w", err)
	}
	return balance, nil
}

// Grant credits an operator top-up.
func (s *Store) Grant(ctx context.Context, userID uuid.UUID, amount int64, note string) (int64, error) {
	return s.Credit(ctx, lobby.Transfer{UserID: userID, Amount: amount, Kind: KindGrant, Reference: note})
}

// RecentTransactions lists a user's newest ledger rows first.
func (s *Store) RecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.BalanceTransaction, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, user_id, kind, amount, balance_after, reference, created_at
		FROM balance_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.BalanceTransaction, error) {
		var t models.BalanceTransaction
		err := row.Scan(&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.BalanceAfter, &t.Reference, &t.CreatedAt)
		return t, err
	})
}

func insertTransaction(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind string, amount, balanceAfter int64, reference string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO balance_transactions (user_id, kind, amount, balance_after, reference)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, kind, amount, balanceAfter, reference,
	)
	return err
}
