package api

import (
	"net/http"

	"github.com/adfharrison1/go-docquery/pkg/aggregation"
	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/gorilla/mux"
)

// AggregateRequest carries a pipeline of Mongo-shaped stages.
type AggregateRequest struct {
	Pipeline []map[string]interface{} `json:"pipeline"`
}

// HandleAggregate handles POST requests running an aggregation pipeline
func (h *Handler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var req AggregateRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, "aggregate", collName, err)
		return
	}
	stages, err := aggregation.ParsePipeline(req.Pipeline)
	if err != nil {
		h.fail(w, "aggregate", collName, err)
		return
	}

	docs, err := h.engine.Aggregate(r.Context(), collName, stages)
	if err != nil {
		h.fail(w, "aggregate", collName, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}
