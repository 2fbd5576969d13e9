package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/dicetable/internal/auth"
	"github.com/jason-s-yu/dicetable/internal/database"
	"github.com/jason-s-yu/dicetable/internal/lobby"
	"github.com/jason-s-yu/dicetable/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	byID    map[uuid.UUID]*models.User
	pass    map[string]string
	lookErr error
}

func (s *stubStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.lookErr != nil {
		return nil, s.lookErr
	}
	u, ok := s.byID[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return u, nil
}

func (s *stubStore) AuthenticateUser(_ context.Context, username, password string) (*models.User, error) {
	if s.lookErr != nil {
		return nil, s.lookErr
	}
	for _, u := range s.byID {
		if u.Username == username && s.pass[username] == password {
			return u, nil
		}
	}
	return nil, database.ErrInvalidCredentials
}

func newGateway(t *testing.T) (*Gateway, *stubStore, *auth.Issuer, *models.User) {
	t.Helper()
	alice := &models.User{ID: uuid.New(), Username: "Alice_Smith", Balance: 750}
	store := &stubStore{
		byID: map[uuid.UUID]*models.User{alice.ID: alice},
		pass: map[string]string{"Alice_Smith": "secret"},
	}
	iss, err := auth.NewIssuer(0)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	return NewGateway(store, iss, logger), store, iss, alice
}

func TestAuthenticateWithPassword(t *testing.T) {
	g, _, _, alice := newGateway(t)

	id, err := g.Authenticate(context.Background(), lobby.Credentials{Username: "Alice_Smith", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, lobby.Identity{UserID: alice.ID, Username: "Alice_Smith", Balance: 750}, id)

	_, err = g.Authenticate(context.Background(), lobby.Credentials{Username: "Alice_Smith", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateWithToken(t *testing.T) {
	g, _, iss, alice := newGateway(t)

	token, err := iss.Issue(alice.ID)
	require.NoError(t, err)
	id, err := g.Authenticate(context.Background(), lobby.Credentials{Token: token})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, id.UserID)

	_, err = g.Authenticate(context.Background(), lobby.Credentials{Token: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidToken)

	stranger, err := iss.Issue(uuid.New())
	require.NoError(t, err)
	_, err = g.Authenticate(context.Background(), lobby.Credentials{Token: stranger})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateStoreFailure(t *testing.T) {
	g, store, _, _ := newGateway(t)
	store.lookErr = errors.New("connection refused")

	_, err := g.Authenticate(context.Background(), lobby.Credentials{Username: "Alice_Smith", Password: "secret"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestValidateDisplayName(t *testing.T) {
	for _, ok := range []string{"Alice_Smith", "Bo_Li", "Xavier_Quinn"} {
		assert.NoError(t, ValidateDisplayName(ok), ok)
	}
	for _, bad := range []string{"alice_smith", "Alice", "Alice_smith", "Alice__Smith", "Alice_Smith2", "A_B", "ALICE_SMITH", "Alice Smith", ""} {
		assert.ErrorIs(t, ValidateDisplayName(bad), ErrInvalidDisplayName, bad)
	}
}
