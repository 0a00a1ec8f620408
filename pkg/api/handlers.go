// Package api exposes the document engine over a REST interface.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"go.uber.org/zap"
)

const (
	// MaxBatchSize bounds the documents accepted by one batch insert.
	MaxBatchSize = 1000
	// maxBodyBytes bounds any request body.
	maxBodyBytes = 32 << 20
)

// Handler provides HTTP handlers for the database API
type Handler struct {
	engine domain.DatabaseEngine
	logger *zap.Logger
}

// NewHandler creates a new API handler with dependency injection
func NewHandler(engine domain.DatabaseEngine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// decodeBody reads a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: empty request body", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}
