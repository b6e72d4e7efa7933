package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apimiddleware "github.com/supermodelai/supermodel-api/internal/api/middleware"
	"github.com/supermodelai/supermodel-api/internal/auth"
	"github.com/supermodelai/supermodel-api/internal/store"
	"github.com/supermodelai/supermodel-api/internal/task"
	"github.com/supermodelai/supermodel-api/internal/ws"
)

// RouterDeps holds the collaborators the HTTP surface is built from.
type RouterDeps struct {
	TaskService *task.Service
	Sessions    store.SessionStore
	JWTService  auth.JWTService
	Hub         *ws.Hub
	Logger      *slog.Logger
}

// NewRouter creates and configures the application router with all routes
// and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	taskHandler := NewTaskHandler(deps.TaskService)
	aiHandler := NewAIRequestHandler(deps.TaskService, deps.Sessions, deps.Logger)
	sessionHandler := NewSessionHandler(deps.Sessions, deps.Logger)
	authMiddleware := apimiddleware.NewAuthMiddleware(deps.JWTService)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/sessions", sessionHandler.CreateSession)
			r.Get("/sessions/{id}/messages", sessionHandler.ListMessages)
			r.Post("/sessions/{id}/skill-packs", sessionHandler.AttachSkillPack)

			r.Post("/ai/requests", aiHandler.CreateRequest)

			r.Get("/tasks/{id}", taskHandler.GetTask)
		})
	})

	// The notification channel authenticates per-connection via the
	// subscribe message, not the HTTP middleware.
	r.Get("/ws", deps.Hub.HandleWS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}
