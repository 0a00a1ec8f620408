package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")

	// Collection operations
	router.HandleFunc("/collections", h.HandleListCollections).Methods("GET")
	router.HandleFunc("/collections/{coll}", h.HandleInsert).Methods("POST")
	router.HandleFunc("/collections/{coll}", h.HandleDropCollection).Methods("DELETE")
	router.HandleFunc("/collections/{coll}/batch", h.HandleBatchInsert).Methods("POST")

	// Document operations (by ID)
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleGetById).Methods("GET")
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleUpdateById).Methods("PATCH")
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleReplaceById).Methods("PUT")
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleDeleteById).Methods("DELETE")

	// Queries
	router.HandleFunc("/collections/{coll}/find", h.HandleFind).Methods("GET")
	router.HandleFunc("/collections/{coll}/query", h.HandleQuery).Methods("POST")
	router.HandleFunc("/collections/{coll}/update", h.HandleUpdateWhere).Methods("POST")
	router.HandleFunc("/collections/{coll}/delete", h.HandleDeleteWhere).Methods("POST")
	router.HandleFunc("/collections/{coll}/aggregate", h.HandleAggregate).Methods("POST")
	router.HandleFunc("/collections/{coll}/explain", h.HandleExplain).Methods("POST")

	// Index operations
	router.HandleFunc("/collections/{coll}/indexes", h.HandleCreateIndex).Methods("POST")
	router.HandleFunc("/collections/{coll}/indexes", h.HandleGetIndexes).Methods("GET")
	router.HandleFunc("/collections/{coll}/indexes/{name}", h.HandleDropIndex).Methods("DELETE")
	router.HandleFunc("/collections/{coll}/indexes/{name}/documents", h.HandleFindByIndex).Methods("GET")
}
