package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/dicetable/internal/cache"
)

// settling actions close a table instance
var settlingActions = map[string]bool{
	"win":       true,
	"no_winner": true,
}

// InsertTableActions persists a batch of action records in one transaction, upserting the
// table row each record belongs to.
func (s *Store) InsertTableActions(ctx context.Context, records []cache.TableActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertTableActionTx(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertTableActionTx(ctx context.Context, tx pgx.Tx, rec cache.TableActionRecord) error {
	var tableID *uuid.UUID
	if rec.TableID != uuid.Nil {
		id := rec.TableID
		tableID = &id
		_, err := tx.Exec(ctx, `
			INSERT INTO tables (id, lobby_id, status, start_time)
			VALUES ($1, $2, 'open', NOW())
			ON CONFLICT (id) DO NOTHING`, rec.TableID, rec.LobbyID)
		if err != nil {
			return err
		}
	}

	var actor *uuid.UUID
	if rec.ActorUserID != uuid.Nil {
		id := rec.ActorUserID
		actor = &id
	}
	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	ts := time.UnixMilli(rec.Timestamp)
	if rec.Timestamp == 0 {
		ts = time.Now()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO table_actions (table_id, lobby_id, actor_user_id, action_type, action_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tableID, rec.LobbyID, actor, rec.ActionType, payload, ts,
	)
	if err != nil {
		return err
	}

	if tableID != nil && settlingActions[rec.ActionType] {
		_, err = tx.Exec(ctx, `
			UPDATE tables SET status = 'settled', end_time = NOW()
			WHERE id = $1 AND status = 'open'`, rec.TableID)
	}
	return err
}

// MarkTableAbandoned closes a table that saw no activity, if it is still open.
func (s *Store) MarkTableAbandoned(ctx context.Context, tableID uuid.UUID) (bool, error) {
	var marked bool
	err := pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE tables SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'open'`, tableID)
		marked = tag.RowsAffected() > 0
		return err
	})
	return marked, err
}
