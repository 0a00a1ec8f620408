package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleListCollections handles GET requests listing every collection
func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	names := h.engine.ListCollections()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collections": names,
		"count":       len(names),
	})
}

// HandleDropCollection handles DELETE requests removing a collection and its data
func (h *Handler) HandleDropCollection(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	if err := h.engine.DropCollection(r.Context(), collName); err != nil {
		h.fail(w, "drop_collection", collName, err)
		return
	}

	h.logger.Info("collection dropped", zap.String("collection", collName))
	w.WriteHeader(http.StatusNoContent)
}
