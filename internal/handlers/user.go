package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/dicetable/internal/database"
	"github.com/jason-s-yu/dicetable/internal/identity"
	"github.com/jason-s-yu/dicetable/internal/models"
	"github.com/sirupsen/logrus"
)

const minPasswordLength = 8

// UserStore is the subset of the database the user endpoints need.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User, startingBalance int64) error
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenIssuer signs and verifies session tokens. *auth.Issuer implements it.
type TokenIssuer interface {
	Issue(userID uuid.UUID) (string, error)
	Verify(token string) (uuid.UUID, error)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string    `json:"token"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Balance  int64     `json:"balance"`
}

// CreateUserHandler registers a user with the starting balance.
//
// Request payload:
//
//	{
//	  "username": "Ada_Lovelace",
//	  "password": "password"
//	}
func CreateUserHandler(logger *logrus.Logger, users UserStore, startingBalance int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if err := identity.ValidateDisplayName(req.Username); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if utf8.RuneCountInString(req.Password) < minPasswordLength {
			http.Error(w, "password must be at least 8 characters", http.StatusBadRequest)
			return
		}

		user := models.User{Username: req.Username, Password: req.Password}
		if err := users.CreateUser(r.Context(), &user, startingBalance); err != nil {
			if errors.Is(err, database.ErrUsernameTaken) {
				http.Error(w, "username already exists", http.StatusConflict)
				return
			}
			logger.WithError(err).Error("failed to create user")
			http.Error(w, "error creating user", http.StatusInternalServerError)
			return
		}
		user.Password = ""
		logger.WithFields(logrus.Fields{"user": user.ID, "username": user.Username}).Info("User registered")
		writeJSON(w, http.StatusCreated, user)
	}
}

// LoginHandler verifies a username and password and returns a session token, also
// set as the auth_token cookie.
//
// Response payload:
//
//	{
//	  "token": "{jwt}",
//	  "user_id": "...",
//	  "username": "Ada_Lovelace",
//	  "balance": 1000
//	}
func LoginHandler(logger *logrus.Logger, users UserStore, tokens TokenIssuer, expire time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request payload", http.StatusBadRequest)
			return
		}

		user, err := users.AuthenticateUser(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, database.ErrInvalidCredentials) {
				http.Error(w, "authentication failed", http.StatusForbidden)
				return
			}
			logger.WithError(err).Error("failed to authenticate user")
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}

		token, err := tokens.Issue(user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to issue token")
			http.Error(w, "failed to issue token", http.StatusInternalServerError)
			return
		}

		cookie := &http.Cookie{
			Name:     AuthCookieName,
			Value:    token,
			HttpOnly: true,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		}
		if expire > 0 {
			cookie.MaxAge = int(expire.Seconds())
		}
		http.SetCookie(w, cookie)

		writeJSON(w, http.StatusOK, loginResponse{
			Token:    token,
			UserID:   user.ID,
			Username: user.Username,
			Balance:  user.Balance,
		})
	}
}

// MeHandler returns the caller's account, balance included.
func MeHandler(logger *logrus.Logger, users UserStore, tokens TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authorize(w, r, tokens)
		if !ok {
			return
		}
		user, err := users.GetUserByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				http.Error(w, "user not found", http.StatusNotFound)
				return
			}
			logger.WithError(err).Error("failed to load user")
			http.Error(w, "failed to load user", http.StatusInternalServerError)
			return
		}
		user.Password = ""
		writeJSON(w, http.StatusOK, user)
	}
}

// authorize verifies the request token and writes the failure response itself.
func authorize(w http.ResponseWriter, r *http.Request, tokens TokenIssuer) (uuid.UUID, bool) {
	token := tokenFromRequest(r)
	if token == "" {
		http.Error(w, "missing auth_token", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	userID, err := tokens.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return uuid.Nil, false
	}
	return userID, true
}
