package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/dicetable/internal/auth"
	"github.com/jason-s-yu/dicetable/internal/cache"
	"github.com/jason-s-yu/dicetable/internal/lobby"
	"github.com/jason-s-yu/dicetable/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to DATABASE_URL; these tests need a live postgres.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Connect(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(s.Close)

	PasswordParams = auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	return s
}

func newUser(t *testing.T, s *Store, balance int64) *models.User {
	t.Helper()
	u := &models.User{Username: "Test_" + uuid.NewString()[:8], Password: "secret"}
	require.NoError(t, s.CreateUser(context.Background(), u, balance))
	return u
}

func TestCreateAndAuthenticateUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := newUser(t, s, 1000)

	got, err := s.AuthenticateUser(ctx, u.Username, "secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.EqualValues(t, 1000, got.Balance)

	_, err = s.AuthenticateUser(ctx, u.Username, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.AuthenticateUser(ctx, "Nobody_Atall", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	dup := &models.User{Username: u.Username, Password: "x"}
	assert.ErrorIs(t, s.CreateUser(ctx, dup, 0), ErrUsernameTaken)
}

func TestDebitIsConditional(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := newUser(t, s, 100)

	bal, err := s.Debit(ctx, lobby.Transfer{UserID: u.ID, Amount: 60, Kind: lobby.KindBet, Reference: "t1"})
	require.NoError(t, err)
	assert.EqualValues(t, 40, bal)

	_, err = s.Debit(ctx, lobby.Transfer{UserID: u.ID, Amount: 60, Kind: lobby.KindBet, Reference: "t2"})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	bal, err = s.Credit(ctx, lobby.Transfer{UserID: u.ID, Amount: 120, Kind: lobby.KindWin, Reference: "t1"})
	require.NoError(t, err)
	assert.EqualValues(t, 160, bal)

	txs, err := s.RecentTransactions(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, lobby.KindWin, txs[0].Kind)
	assert.EqualValues(t, -60, txs[1].Amount)
	assert.Equal(t, KindGrant, txs[2].Kind)
}

func TestInsertTableActionsSettlesTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	lobbyID, tableID := uuid.New(), uuid.New()

	err := s.InsertTableActions(ctx, []cache.TableActionRecord{
		{LobbyID: lobbyID, TableID: tableID, ActorUserID: uuid.New(), ActionType: "table_open", Timestamp: time.Now().UnixMilli()},
		{LobbyID: lobbyID, TableID: tableID, ActionType: "round_start", ActionPayload: map[string]interface{}{"pot": 100}},
		{LobbyID: lobbyID, TableID: tableID, ActorUserID: uuid.New(), ActionType: "win"},
	})
	require.NoError(t, err)

	var status string
	require.NoError(t, s.Pool.QueryRow(ctx, `SELECT status FROM tables WHERE id=$1`, tableID).Scan(&status))
	assert.Equal(t, "settled", status)

	marked, err := s.MarkTableAbandoned(ctx, tableID)
	require.NoError(t, err)
	assert.False(t, marked, "settled tables are never abandoned")
}
