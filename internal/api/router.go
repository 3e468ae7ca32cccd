package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/siminyang/aboutxtime/internal/api/recovery"
	"github.com/siminyang/aboutxtime/internal/blob"
	"github.com/siminyang/aboutxtime/internal/services"
	"github.com/siminyang/aboutxtime/internal/store"
)

// Deps carries the service handles the router exposes. Blobs is optional:
// only adapters that serve bytes through the process implement blob.Reader.
type Deps struct {
	Capsules *services.CapsuleService
	Users    *services.UserService
	Pinger   store.HealthPinger
	Blobs    blob.Reader
	Log      zerolog.Logger
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(deps Deps) *mux.Router {
	router := mux.NewRouter()

	router.Use(recovery.New(deps.Log))

	healthHandler := NewHealthHandler(deps.Pinger)
	userHandler := NewUserHandler(deps.Users)
	capsuleHandler := NewCapsuleHandler(deps.Capsules)
	watchHandler := NewWatchHandler(deps.Capsules)

	// Health endpoints
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/api/health/db", healthHandler.CheckStoreHealth).Methods("GET")

	// User endpoints
	router.HandleFunc("/api/users", userHandler.UpsertUser).Methods("POST")
	router.HandleFunc("/api/users/{userId}", userHandler.GetUser).Methods("GET")
	router.HandleFunc("/api/users/{userId}/friends/{friendId}", userHandler.GetFriend).Methods("GET")
	router.HandleFunc("/api/users/{userId}/friends/{friendId}", userHandler.DeleteFriend).Methods("DELETE")

	// Capsule lifecycle endpoints
	router.HandleFunc("/api/capsules", capsuleHandler.CreateCapsule).Methods("POST")
	router.HandleFunc("/api/capsules/submit", capsuleHandler.SubmitCapsule).Methods("POST")
	router.HandleFunc("/api/capsules/{capsuleId}", capsuleHandler.GetCapsule).Methods("GET")
	router.HandleFunc("/api/capsules/{capsuleId}", capsuleHandler.DeleteCapsule).Methods("DELETE")
	router.HandleFunc("/api/capsules/{capsuleId}/open", capsuleHandler.OpenCapsule).Methods("POST")
	router.HandleFunc("/api/capsules/{capsuleId}/replies", capsuleHandler.AddReply).Methods("POST")
	router.HandleFunc("/api/capsules/{capsuleId}/watch", watchHandler.WatchCapsule).Methods("GET")

	// Per-user capsule views
	router.HandleFunc("/api/users/{userId}/capsules", capsuleHandler.ListReceived).Methods("GET")
	router.HandleFunc("/api/users/{userId}/capsules/pending", capsuleHandler.PendingTray).Methods("GET")
	router.HandleFunc("/api/users/{userId}/capsules/opened", capsuleHandler.OpenedByAge).Methods("GET")
	router.HandleFunc("/api/users/{userId}/capsules/search", capsuleHandler.Search).Methods("GET")
	router.HandleFunc("/api/users/{userId}/capsules/watch", watchHandler.WatchUserCapsules).Methods("GET")

	// Media route, only for adapters that serve bytes through the process.
	if deps.Blobs != nil {
		mediaHandler := NewMediaHandler(deps.Blobs)
		router.HandleFunc("/api/media/{path:.+}", mediaHandler.GetMedia).Methods("GET")
	}

	return router
}
