package api

import (
	"fmt"
	"net/http"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/filter"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// UpdateRequest applies an update to every document matching a filter:
//
//	{"filter": {"author": "George Orwell"}, "update": {"$set": {"price": 9.99}}}
type UpdateRequest struct {
	Filter map[string]interface{} `json:"filter"`
	Update map[string]interface{} `json:"update"`
}

// DeleteRequest removes every document matching a filter.
type DeleteRequest struct {
	Filter map[string]interface{} `json:"filter"`
}

// HandleUpdateWhere handles POST requests updating all matching documents
func (h *Handler) HandleUpdateWhere(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var req UpdateRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, "update", collName, err)
		return
	}
	if len(req.Update) == 0 {
		h.fail(w, "update", collName, fmt.Errorf("%w: update is required", domain.ErrInvalidArgument))
		return
	}
	expr, err := filter.Parse(req.Filter)
	if err != nil {
		h.fail(w, "update", collName, err)
		return
	}

	n, err := h.engine.UpdateWhere(r.Context(), collName, expr, req.Update)
	if err != nil {
		h.fail(w, "update", collName, err)
		return
	}

	h.logger.Info("documents updated", zap.String("collection", collName), zap.Int("modified", n))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collection":     collName,
		"modified_count": n,
	})
}

// HandleDeleteWhere handles POST requests deleting all matching documents.
// An empty filter deletes every document.
func (h *Handler) HandleDeleteWhere(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var req DeleteRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, "delete", collName, err)
		return
	}
	expr, err := filter.Parse(req.Filter)
	if err != nil {
		h.fail(w, "delete", collName, err)
		return
	}

	n, err := h.engine.DeleteWhere(r.Context(), collName, expr)
	if err != nil {
		h.fail(w, "delete", collName, err)
		return
	}

	h.logger.Info("documents deleted", zap.String("collection", collName), zap.Int("count", n))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collection":    collName,
		"deleted_count": n,
	})
}
