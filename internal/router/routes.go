package router

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	v1 "github.com/tinoosan/ghusers/api/v1"
	"github.com/tinoosan/ghusers/internal/auth"
	"github.com/tinoosan/ghusers/internal/service"
)

// New sets up the application routes and required middleware. An empty
// apiToken leaves /v1 unauthenticated.
func New(logger *slog.Logger, usersSvc service.Users, apiToken string) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write healthz response", "err", err)
		}
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	users := v1.NewUsers(logger, usersSvc)

	r.Use(v1.RequestID)
	r.Use(users.Log)
	r.Use(auth.Middleware(apiToken))

	api := r.PathPrefix("/v1").Subrouter()

	get := api.Methods("GET").Subrouter()
	get.HandleFunc("/users", users.ListUsers)
	get.HandleFunc("/users/{id:[0-9]+}/avatar", users.GetAvatar)
	get.HandleFunc("/users/{id:[0-9]+}/note", users.GetNote)
	get.HandleFunc("/users/{login}", users.GetUser)
	get.HandleFunc("/connectivity", users.GetConnectivity)
	get.HandleFunc("/connectivity/ws", users.WatchConnectivity)

	put := api.Methods("PUT").Subrouter()
	put.HandleFunc("/users/{id:[0-9]+}/note", users.PutNote)

	del := api.Methods("DELETE").Subrouter()
	del.HandleFunc("/users/{id:[0-9]+}/avatar", users.DeleteAvatar)
	del.HandleFunc("/users/{id:[0-9]+}/note", users.DeleteNote)

	return r
}
