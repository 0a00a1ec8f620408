package api

import (
	"net/http"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleGetById handles GET requests to retrieve a specific document by ID
func (h *Handler) HandleGetById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName, docId := vars["coll"], vars["id"]

	doc, err := h.engine.GetById(r.Context(), collName, docId)
	if err != nil {
		h.fail(w, "get_by_id", collName, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// HandleUpdateById handles PATCH requests. The body is a field map or an
// update using $set, $unset and $inc.
func (h *Handler) HandleUpdateById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName, docId := vars["coll"], vars["id"]

	var patch domain.Document
	if err := decodeBody(w, r, &patch); err != nil {
		h.fail(w, "update_by_id", collName, err)
		return
	}

	doc, err := h.engine.UpdateById(r.Context(), collName, docId, patch)
	if err != nil {
		h.fail(w, "update_by_id", collName, err)
		return
	}

	h.logger.Debug("document updated", zap.String("collection", collName), zap.String("id", docId))
	writeJSON(w, http.StatusOK, doc)
}

// HandleReplaceById handles PUT requests to replace a document, keeping its ID
func (h *Handler) HandleReplaceById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName, docId := vars["coll"], vars["id"]

	var replacement domain.Document
	if err := decodeBody(w, r, &replacement); err != nil {
		h.fail(w, "replace_by_id", collName, err)
		return
	}

	doc, err := h.engine.ReplaceById(r.Context(), collName, docId, replacement)
	if err != nil {
		h.fail(w, "replace_by_id", collName, err)
		return
	}

	h.logger.Debug("document replaced", zap.String("collection", collName), zap.String("id", docId))
	writeJSON(w, http.StatusOK, doc)
}

// HandleDeleteById handles DELETE requests to remove a specific document by ID
func (h *Handler) HandleDeleteById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName, docId := vars["coll"], vars["id"]

	if err := h.engine.DeleteById(r.Context(), collName, docId); err != nil {
		h.fail(w, "delete_by_id", collName, err)
		return
	}

	h.logger.Debug("document deleted", zap.String("collection", collName), zap.String("id", docId))
	w.WriteHeader(http.StatusNoContent)
}
