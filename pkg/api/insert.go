package api

import (
	"fmt"
	"net/http"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// InsertResponse reports the _id assigned to an inserted document
type InsertResponse struct {
	ID         string `json:"_id"`
	Collection string `json:"collection"`
}

// BatchInsertRequest represents the request body for batch insert operations
type BatchInsertRequest struct {
	Documents []domain.Document `json:"documents"`
}

// BatchInsertResponse represents the response for batch insert operations
type BatchInsertResponse struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	InsertedCount int      `json:"inserted_count"`
	InsertedIDs   []string `json:"inserted_ids"`
	Collection    string   `json:"collection"`
}

// HandleInsert handles POST requests to insert documents into collections
func (h *Handler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var doc domain.Document
	if err := decodeBody(w, r, &doc); err != nil {
		h.fail(w, "insert", collName, err)
		return
	}

	id, err := h.engine.Insert(r.Context(), collName, doc)
	if err != nil {
		h.fail(w, "insert", collName, err)
		return
	}

	h.logger.Debug("document inserted", zap.String("collection", collName), zap.String("id", id))
	writeJSON(w, http.StatusCreated, InsertResponse{ID: id, Collection: collName})
}

// HandleBatchInsert handles POST requests to insert multiple documents into collections
func (h *Handler) HandleBatchInsert(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var req BatchInsertRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, "insert_many", collName, err)
		return
	}
	if len(req.Documents) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "No documents provided")
		return
	}
	if len(req.Documents) > MaxBatchSize {
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("Maximum %d documents allowed per batch", MaxBatchSize))
		return
	}

	ids, err := h.engine.InsertMany(r.Context(), collName, req.Documents)
	if err != nil {
		h.fail(w, "insert_many", collName, err)
		return
	}

	h.logger.Info("batch inserted", zap.String("collection", collName), zap.Int("count", len(ids)))
	writeJSON(w, http.StatusCreated, BatchInsertResponse{
		Success:       true,
		Message:       "Batch insert completed successfully",
		InsertedCount: len(ids),
		InsertedIDs:   ids,
		Collection:    collName,
	})
}
