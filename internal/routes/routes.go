package routes

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"campuswatt/internal/controller"
)

// NewRouter registers all application routes.
func NewRouter(c *controller.DataController) *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/nodes/status", c.HandleNodesStatus).Methods(http.MethodGet)
	api.HandleFunc("/nodes/{node_id}/data", c.HandleNodeHistory).Methods(http.MethodGet)
	api.HandleFunc("/campus/summary", c.HandleCampusSummary).Methods(http.MethodGet)
	api.HandleFunc("/campus/cost", c.HandleCampusCost).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}).Methods(http.MethodGet)

	return router
}
