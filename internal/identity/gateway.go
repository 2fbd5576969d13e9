// internal/identity/gateway.go
package identity

import (
	"context"
	"errors"
	"regexp"

	"github.com/google/uuid"
	"github.com/jason-s-yu/dicetable/internal/database"
	"github.com/jason-s-yu/dicetable/internal/lobby"
	"github.com/jason-s-yu/dicetable/internal/models"
	"github.com/sirupsen/logrus"
)

// Errors surfaced to clients; their text is shown verbatim.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnavailable        = errors.New("identity service unavailable")
	ErrInvalidDisplayName = errors.New("display name must look like First_Last")
)

var displayNamePattern = regexp.MustCompile(`^[A-Z][a-z]+_[A-Z][a-z]+$`)

// ValidateDisplayName enforces one capitalized word, an underscore, and another capitalized word.
func ValidateDisplayName(name string) error {
	if !displayNamePattern.MatchString(name) {
		return ErrInvalidDisplayName
	}
	return nil
}

// UserStore is the subset of the database the gateway needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
}

// TokenVerifier validates a session token and returns its user ID.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Gateway authenticates websocket sessions against the user store.
type Gateway struct {
	users  UserStore
	tokens TokenVerifier
	logger *logrus.Logger
}

// NewGateway builds a gateway.
func NewGateway(users UserStore, tokens TokenVerifier, logger *logrus.Logger) *Gateway {
	return &Gateway{users: users, tokens: tokens, logger: logger}
}

// Authenticate accepts a token, or a username and password when no token is given.
func (g *Gateway) Authenticate(ctx context.Context, creds lobby.Credentials) (lobby.Identity, error) {
	var (
		user *models.User
		err  error
	)
	if creds.Token != "" {
		var userID uuid.UUID
		userID, err = g.tokens.Verify(creds.Token)
		if err != nil {
			g.logger.WithError(err).Debug("Token rejected")
			return lobby.Identity{}, ErrInvalidToken
		}
		user, err = g.users.GetUserByID(ctx, userID)
		if errors.Is(err, database.ErrUserNotFound) {
			return lobby.Identity{}, ErrInvalidToken
		}
	} else {
		user, err = g.users.AuthenticateUser(ctx, creds.Username, creds.Password)
		if errors.Is(err, database.ErrInvalidCredentials) {
			return lobby.Identity{}, ErrInvalidCredentials
		}
	}
	if err != nil {
		g.logger.WithError(err).Error("User lookup failed")
		return lobby.Identity{}, ErrUnavailable
	}

	return lobby.Identity{UserID: user.ID, Username: user.Username, Balance: user.Balance}, nil
}
