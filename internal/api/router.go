package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/neurodash/internal/api/handler"
	"github.com/mcoot/neurodash/internal/api/middleware"
	"github.com/mcoot/neurodash/internal/api/response"
	"github.com/mcoot/neurodash/internal/feed"
	"github.com/mcoot/neurodash/internal/services/auth"
	"github.com/mcoot/neurodash/internal/services/bot"
	"github.com/mcoot/neurodash/internal/services/duel"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	DuelController *duel.Controller
	BotService     *bot.Service
	Subscriber     feed.Subscriber
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.AuthService)
	duelHandler := handler.NewDuelHandler(cfg.DuelController, cfg.BotService, cfg.Subscriber, cfg.Logger)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)
	api.Use(recoveryMiddleware)

	// Player routes (no auth required for creating players/logging in)
	api.HandleFunc("/players/guest", playerHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)

	// Protected player routes
	playerProtected := api.PathPrefix("/players").Subrouter()
	playerProtected.Use(authMiddleware)
	playerProtected.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)
	playerProtected.HandleFunc("/logout", playerHandler.Logout).Methods(http.MethodPost)
	playerProtected.HandleFunc("/{id}", playerHandler.Get).Methods(http.MethodGet)

	// Duel routes (all require auth)
	duels := api.PathPrefix("/duels").Subrouter()
	duels.Use(authMiddleware)
	duels.HandleFunc("", duelHandler.Create).Methods(http.MethodPost)
	duels.HandleFunc("/join", duelHandler.Join).Methods(http.MethodPost)
	duels.HandleFunc("/{code}", duelHandler.Get).Methods(http.MethodGet)
	duels.HandleFunc("/{code}/ready", duelHandler.Ready).Methods(http.MethodPost)
	duels.HandleFunc("/{code}/start", duelHandler.Start).Methods(http.MethodPost)
	duels.HandleFunc("/{code}/reaction", duelHandler.Reaction).Methods(http.MethodPost)
	duels.HandleFunc("/{code}/false-start", duelHandler.FalseStart).Methods(http.MethodPost)
	duels.HandleFunc("/{code}/finish", duelHandler.Finish).Methods(http.MethodPost)
	duels.HandleFunc("/{code}/rematch", duelHandler.Rematch).Methods(http.MethodPost)
	duels.HandleFunc("/{code}/bot", duelHandler.AddBot).Methods(http.MethodPost)
	duels.HandleFunc("/{code}/events", duelHandler.Events).Methods(http.MethodGet)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
