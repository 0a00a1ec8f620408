package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// HandleExplain handles POST requests describing how a query would run. The
// body is a QueryRequest. With ?execute=true the query is run and execution
// statistics are returned alongside the plan.
func (h *Handler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var req QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, "explain", collName, err)
		return
	}
	q, err := req.ToQuery()
	if err != nil {
		h.fail(w, "explain", collName, err)
		return
	}

	if r.URL.Query().Get("execute") == "true" {
		stats, err := h.engine.Explain(r.Context(), collName, q)
		if err != nil {
			h.fail(w, "explain", collName, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
		return
	}

	plan, err := h.engine.ExplainPlan(r.Context(), collName, q)
	if err != nil {
		h.fail(w, "explain", collName, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
