// Package swagger serves the OpenAPI description of the score API.
package swagger

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the docs route to r:
//
//	GET /openapi.yaml  -> embedded OpenAPI document
//
// No HTML viewer is served; point any OpenAPI viewer at the document.
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
}
