package rest

import (
	_ "embed"
	"net/http"
)

// openAPISpec is the contract served at /openapi.yaml and enforced by the
// contract validation middleware
//
//go:embed openapi.yaml
var openAPISpec []byte

// OpenAPISpec returns the embedded API contract
func OpenAPISpec() []byte {
	return openAPISpec
}

// handleOpenAPISpec serves the OpenAPI specification
func (h *Handler) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}
