package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/padelops/bracket-engine/handlers"
	"github.com/padelops/bracket-engine/middleware"
)

// SetupRoutes mounts the full HTTP surface. Reads and the websocket feed
// are public; every mutation requires an organizer token except the player
// score path, which only requires authentication.
func SetupRoutes(
	router *chi.Mux,
	bracketHandler *handlers.BracketHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
	jwtSecret string,
	allowedOrigins []string,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/swagger/*", httpSwagger.Handler())

	authenticate := middleware.Authenticate(jwtSecret)
	organizerOnly := middleware.RequireRole(middleware.RoleOrganizer)

	router.Route("/brackets", func(r chi.Router) {
		r.Get("/{bracketID}", bracketHandler.GetBracket)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)

			r.Post("/knockout", bracketHandler.GenerateKnockout)
			r.Post("/groups", bracketHandler.GenerateGroups)
			r.Patch("/{bracketID}/status", bracketHandler.UpdateStatus)
			r.Post("/{bracketID}/withdraw", bracketHandler.WithdrawTeam)
			r.Post("/{bracketID}/swap", bracketHandler.SwapTeams)
		})
	})

	router.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		r.Get("/brackets", bracketHandler.ListTournamentBrackets)
		r.Get("/categories/{categoryID}/bracket", bracketHandler.GetBracketByCategory)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)

			r.Post("/categories/{categoryID}/knockout", bracketHandler.GenerateKnockoutFromGroups)
			r.Delete("/categories/{categoryID}/knockout", bracketHandler.DeleteKnockoutPhase)
		})
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		// Player path: authenticated, roster-checked in the service.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/score", matchHandler.SubmitScoreAsPlayer)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)

			r.Put("/score", matchHandler.UpdateScore)
			r.Delete("/score", matchHandler.ResetScore)
			r.Post("/advance", matchHandler.AdvanceWinner)
		})
	})

	router.Get("/ws/brackets/{bracketID}", webSocketHandler.ServeBracket)
}
