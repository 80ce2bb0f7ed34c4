package routes

import (
	"github.com/contest-lab/competition-system/handlers"
	"github.com/contest-lab/competition-system/middleware"
	"github.com/contest-lab/competition-system/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	auth *middleware.AuthMiddleware,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	competitionHandler *handlers.CompetitionHandler,
	roundHandler *handlers.RoundHandler,
	submissionHandler *handlers.SubmissionHandler,
	prizeHandler *handlers.PrizeHandler,
	registrationHandler *handlers.RegistrationHandler,
	notificationHandler *handlers.NotificationHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	organizerOnly := middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin)

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Get("/ws/notifications", webSocketHandler.ServeWs)

	router.Route("/competitions", func(r chi.Router) {
		r.Get("/", competitionHandler.List)
		r.Get("/{competitionID}", competitionHandler.GetByID)
		r.Get("/{competitionID}/rounds", roundHandler.ListByCompetition)
		r.Get("/{competitionID}/prizes", prizeHandler.ListByCompetition)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/{competitionID}/registrations", registrationHandler.Register)
			r.Post("/{competitionID}/rounds/{roundID}/submissions", submissionHandler.Submit)
			r.Get("/{competitionID}/submissions/mine", submissionHandler.ListMine)

			r.Group(func(r chi.Router) {
				r.Use(organizerOnly)

				r.Post("/", competitionHandler.Create)
				r.Put("/{competitionID}", competitionHandler.Update)
				r.Delete("/{competitionID}", competitionHandler.Delete)
				r.Post("/{competitionID}/logo", competitionHandler.UploadLogo)
				r.Post("/{competitionID}/publish", competitionHandler.Publish)

				r.Post("/{competitionID}/rounds", roundHandler.Create)
				r.Post("/{competitionID}/prizes", prizeHandler.Create)
				r.Post("/{competitionID}/prizes/{prizeID}/assign", prizeHandler.Assign)
				r.Get("/{competitionID}/registrations", registrationHandler.ListParticipants)
			})
		})
	})

	router.Route("/rounds", func(r chi.Router) {
		r.Get("/{roundID}", roundHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/{roundID}/files", submissionHandler.UploadFile)

			r.Group(func(r chi.Router) {
				r.Use(organizerOnly)

				r.Put("/{roundID}", roundHandler.Update)
				r.Delete("/{roundID}", roundHandler.Delete)
				r.Get("/{roundID}/submissions", submissionHandler.ListByRound)
			})
		})
	})

	router.Route("/submissions", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/{submissionID}", submissionHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(organizerOnly)

			r.Post("/{submissionID}/review", submissionHandler.Review)
			r.Post("/{submissionID}/advance", submissionHandler.Advance)
			r.Post("/{submissionID}/withdraw", submissionHandler.Withdraw)
		})
	})

	router.Route("/prizes", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(organizerOnly)

		r.Delete("/{prizeID}", prizeHandler.Delete)
	})

	router.Route("/notifications", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/", notificationHandler.ListForUser)
		r.Patch("/{notificationID}", notificationHandler.MarkStatus)
	})

	router.Route("/users", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/me", userHandler.Me)
		r.Get("/{userID}", userHandler.GetByID)
	})
}
