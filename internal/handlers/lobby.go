// internal/handlers/lobby.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/dicetable/internal/lobby"
	"github.com/sirupsen/logrus"
)

type lobbyListResponse struct {
	Lobbies []lobby.Summary `json:"lobbies"`
}

// ListLobbiesHandler mirrors the get_lobbies action over HTTP.
func ListLobbiesHandler(logger *logrus.Logger, engine LobbyEngine, tokens TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authorize(w, r, tokens); !ok {
			return
		}
		list, err := engine.ListLobbies(r.Context())
		if err != nil {
			logger.WithError(err).Warn("failed to list lobbies")
			http.Error(w, "lobby list unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, lobbyListResponse{Lobbies: list})
	}
}
