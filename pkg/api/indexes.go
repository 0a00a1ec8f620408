package api

import (
	"net/http"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CreateIndexRequest lists the index fields in key order:
//
//	{"fields": [{"field": "author", "direction": 1}, {"field": "published_year", "direction": -1}]}
type CreateIndexRequest struct {
	Fields domain.IndexSpec `json:"fields"`
}

// HandleCreateIndex creates an index over one or more fields of a collection
func (h *Handler) HandleCreateIndex(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var req CreateIndexRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, "create_index", collName, err)
		return
	}
	for i := range req.Fields {
		if req.Fields[i].Direction == 0 {
			req.Fields[i].Direction = domain.Ascending
		}
	}

	handle, err := h.engine.CreateIndex(r.Context(), collName, req.Fields)
	if err != nil {
		h.fail(w, "create_index", collName, err)
		return
	}

	h.logger.Info("index ready", zap.String("collection", collName), zap.String("index", handle.Name))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"collection": collName,
		"index":      handle,
	})
}

// HandleGetIndexes handles GET requests to retrieve all indexes for a collection
func (h *Handler) HandleGetIndexes(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	indexes, err := h.engine.GetIndexes(r.Context(), collName)
	if err != nil {
		h.fail(w, "get_indexes", collName, err)
		return
	}
	if indexes == nil {
		indexes = []domain.IndexInfo{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collection":  collName,
		"indexes":     indexes,
		"index_count": len(indexes),
	})
}

// HandleDropIndex handles DELETE requests removing an index by name
func (h *Handler) HandleDropIndex(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName, name := vars["coll"], vars["name"]

	if err := h.engine.DropIndex(r.Context(), collName, name); err != nil {
		h.fail(w, "drop_index", collName, err)
		return
	}

	h.logger.Info("index dropped", zap.String("collection", collName), zap.String("index", name))
	w.WriteHeader(http.StatusNoContent)
}

// HandleFindByIndex handles GET requests reading documents through an index.
// Each value parameter binds the next index field, in index order:
//
//	GET /collections/books/indexes/author_1_published_year_-1/documents?value=Herbert&value=1965
func (h *Handler) HandleFindByIndex(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName, name := vars["coll"], vars["name"]

	raw := r.URL.Query()["value"]
	values := make([]interface{}, len(raw))
	for i, v := range raw {
		values[i] = paramValue(v)
	}

	docs, err := h.engine.FindByIndex(r.Context(), collName, name, values...)
	if err != nil {
		h.fail(w, "find_by_index", collName, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}
