package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/adfharrison1/go-docquery/pkg/aggregation"
	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/filter"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// QueryRequest is the JSON form of a find:
//
//	{"filter": {"published_year": {"$gt": 2000}}, "sort": [{"author": 1}], "projection": {"title": 1}, "limit": 10}
//
// Setting page or page_size returns a PaginationResult instead of a plain list.
type QueryRequest struct {
	Filter     map[string]interface{} `json:"filter"`
	Projection map[string]interface{} `json:"projection"`
	Sort       interface{}            `json:"sort"`
	Skip       int                    `json:"skip"`
	Limit      int                    `json:"limit"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
}

// Paged reports whether the request asks for page metadata.
func (req QueryRequest) Paged() bool {
	return req.Page != 0 || req.PageSize != 0
}

// ToQuery converts the request into an engine query.
func (req QueryRequest) ToQuery() (domain.Query, error) {
	var q domain.Query
	expr, err := filter.Parse(req.Filter)
	if err != nil {
		return q, err
	}
	q.Filter = expr
	if req.Sort != nil {
		if q.Sort, err = aggregation.ParseSortKeys(req.Sort); err != nil {
			return q, err
		}
	}
	if q.Projection, err = parseProjection(req.Projection); err != nil {
		return q, err
	}
	q.Skip, q.Limit = req.Skip, req.Limit
	return q, q.Validate()
}

func parseProjection(raw map[string]interface{}) (domain.Projection, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	p := make(domain.Projection, len(raw))
	for field, v := range raw {
		switch val := v.(type) {
		case bool:
			p[field] = val
		case float64:
			if val != 0 && val != 1 {
				return nil, fmt.Errorf("%w: projection value for %q must be 0 or 1", domain.ErrInvalidArgument, field)
			}
			p[field] = val == 1
		default:
			return nil, fmt.Errorf("%w: projection value for %q must be 0, 1 or a boolean", domain.ErrInvalidArgument, field)
		}
	}
	return p, nil
}

// HandleQuery handles POST requests carrying a JSON query descriptor
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var req QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, "find", collName, err)
		return
	}
	h.runQuery(w, r, collName, req)
}

// HandleFind handles GET requests to find documents. Reserved parameters are
// filter (a JSON object), sort ("author,-published_year"), fields
// ("title,author" or "-promo"), skip, limit, page and page_size. Any other
// parameter is an equality filter; repeating it matches any of the values.
// Values that parse as numbers or booleans are compared as such, except _id.
func (h *Handler) HandleFind(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	req, err := queryFromParams(r.URL.Query())
	if err != nil {
		h.fail(w, "find", collName, err)
		return
	}
	h.runQuery(w, r, collName, req)
}

func (h *Handler) runQuery(w http.ResponseWriter, r *http.Request, collName string, req QueryRequest) {
	q, err := req.ToQuery()
	if err != nil {
		h.fail(w, "find", collName, err)
		return
	}

	if req.Paged() {
		page, err := h.engine.FindPage(r.Context(), collName, q, &domain.PaginationOptions{Page: req.Page, PageSize: req.PageSize})
		if err != nil {
			h.fail(w, "find_page", collName, err)
			return
		}
		h.logger.Debug("page served", zap.String("collection", collName),
			zap.Int("page", page.Page), zap.Int("returned", len(page.Documents)), zap.Int64("total", page.Total))
		writeJSON(w, http.StatusOK, page)
		return
	}

	docs, err := h.engine.Find(r.Context(), collName, q)
	if err != nil {
		h.fail(w, "find", collName, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	h.logger.Debug("query served", zap.String("collection", collName), zap.Int("returned", len(docs)))
	writeJSON(w, http.StatusOK, docs)
}

func queryFromParams(params url.Values) (QueryRequest, error) {
	req := QueryRequest{Filter: make(map[string]interface{})}
	for key, values := range params {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		var err error
		switch key {
		case "filter":
			var extra map[string]interface{}
			if err := json.Unmarshal([]byte(value), &extra); err != nil {
				return req, fmt.Errorf("%w: filter must be a JSON object: %v", domain.ErrInvalidArgument, err)
			}
			for k, v := range extra {
				req.Filter[k] = v
			}
		case "sort":
			req.Sort = sortFromParam(value)
		case "fields":
			req.Projection = projectionFromParam(value)
		case "skip":
			req.Skip, err = intParam(key, value)
		case "limit":
			req.Limit, err = intParam(key, value)
		case "page":
			req.Page, err = intParam(key, value)
		case "page_size":
			req.PageSize, err = intParam(key, value)
		case domain.IDField:
			req.Filter[key] = value
		default:
			if len(values) > 1 {
				in := make([]interface{}, len(values))
				for i, v := range values {
					in[i] = paramValue(v)
				}
				req.Filter[key] = map[string]interface{}{"$in": in}
			} else {
				req.Filter[key] = paramValue(value)
			}
		}
		if err != nil {
			return req, err
		}
	}
	return req, nil
}

func intParam(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrInvalidArgument, name, value)
	}
	return n, nil
}

// paramValue reads a query string value as a number or boolean when it
// parses as one, and as a string otherwise.
func paramValue(value string) interface{} {
	if num, err := strconv.ParseFloat(value, 64); err == nil {
		return num
	}
	if b, err := strconv.ParseBool(value); err == nil && (value == "true" || value == "false") {
		return b
	}
	return value
}

func sortFromParam(value string) []interface{} {
	var keys []interface{}
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		dir := 1.0
		if strings.HasPrefix(field, "-") {
			field, dir = field[1:], -1
		}
		keys = append(keys, map[string]interface{}{field: dir})
	}
	return keys
}

func projectionFromParam(value string) map[string]interface{} {
	p := make(map[string]interface{})
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if strings.HasPrefix(field, "-") {
			p[field[1:]] = false
		} else {
			p[field] = true
		}
	}
	return p
}
