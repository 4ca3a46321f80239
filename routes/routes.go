package routes

import (
	"github.com/bracketlab/tournament-engine/handlers"
	"github.com/bracketlab/tournament-engine/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Config struct {
	JWTSecret         []byte
	CORSAllowedOrigin string
}

func SetupRoutes(
	router *chi.Mux,
	cfg Config,
	tournamentHandler *handlers.TournamentHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	authenticate := middleware.Authenticate(cfg.JWTSecret)

	router.Route("/tournaments", func(r chi.Router) {
		// Public listing
		r.Get("/", tournamentHandler.ListHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", tournamentHandler.CreateHandler)
			r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)
			r.Put("/{tournamentID}", tournamentHandler.UpdateHandler)
			r.Delete("/{tournamentID}", tournamentHandler.DeleteHandler)
			r.Put("/{tournamentID}/logo", tournamentHandler.UploadLogoHandler)
			r.Delete("/{tournamentID}/logo", tournamentHandler.RemoveLogoHandler)

			r.Post("/{tournamentID}/join", tournamentHandler.JoinHandler)
			r.Post("/{tournamentID}/remove-participant", tournamentHandler.RemoveParticipantHandler)
			r.Post("/{tournamentID}/generate-bracket", tournamentHandler.GenerateBracketHandler)
			r.Post("/{tournamentID}/submit-result", tournamentHandler.SubmitResultHandler)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}
