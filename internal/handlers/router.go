// internal/handlers/router.go
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/dicetable/internal/middleware"
	"github.com/sirupsen/logrus"
)

// RouterOptions carries everything the HTTP surface depends on.
type RouterOptions struct {
	Logger          *logrus.Logger
	Engine          LobbyEngine
	Users           UserStore
	Tokens          TokenIssuer
	StartingBalance int64
	TokenExpire     time.Duration
	// AllowedOrigins are full origins ("https://dice.example.com") or "*".
	AllowedOrigins []string
}

// NewRouter wires the user endpoints, the lobby listing and the lobby websocket.
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogMiddleware(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/user", func(r chi.Router) {
		r.Post("/create", CreateUserHandler(opts.Logger, opts.Users, opts.StartingBalance))
		r.Post("/login", LoginHandler(opts.Logger, opts.Users, opts.Tokens, opts.TokenExpire))
		r.Get("/me", MeHandler(opts.Logger, opts.Users, opts.Tokens))
	})
	r.Get("/lobby/list", ListLobbiesHandler(opts.Logger, opts.Engine, opts.Tokens))
	r.Get("/ws", LobbyWSHandler(opts.Logger, opts.Engine, originHosts(opts.AllowedOrigins)))

	return r
}

// originHosts turns configured origins into the host patterns websocket.Accept matches.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		if o != "" {
			hosts = append(hosts, strings.TrimSuffix(o, "/"))
		}
	}
	return hosts
}
