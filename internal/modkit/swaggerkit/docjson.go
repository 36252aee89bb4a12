//go:build swag

package swaggerkit

import (
	"encoding/json"
	"net/http"
	"strings"

	"taplist/internal/platform/config"

	docs "taplist/internal/services/api/docs"
)

// docReader is a seam so tests can feed the handler a spec without running
// the swag generator
var docReader = func() string { return docs.SwaggerInfo.ReadDoc() }

// serveDocJSON parses the generated spec and patches in what the generator
// cannot know: the servers block and the default error responses
func serveDocJSON() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var spec map[string]any
		if err := json.Unmarshal([]byte(docReader()), &spec); err != nil {
			http.Error(w, "spec parse error", http.StatusInternalServerError)
			return
		}

		ensureServers(spec, "/api/v1")

		if v := config.New().Prefix("CORE_API_").MayString("DOCS_TITLE_SUFFIX", ""); v != "" {
			if info, ok := spec["info"].(map[string]any); ok {
				if title, ok := info["title"].(string); ok {
					info["title"] = title + " " + v
				}
			}
		}

		ensureErrorEnvelopeSchema(spec)
		injectDefaultResponse(spec, "500", errorResponse("Internal Server Error", map[string]any{
			"success":    false,
			"error":      map[string]any{"code": "INTERNAL", "message": "internal error"},
			"request_id": "tap-req-0042",
		}))
		injectDefaultResponse(spec, "400", errorResponse("Bad Request", map[string]any{
			"success":    false,
			"error":      map[string]any{"code": "INVALID_REQUEST", "message": "abv must be at most 100", "field": "abv"},
			"request_id": "tap-req-0042",
		}))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(spec)
	}
}

// ensureServers lifts swagger 2 specs to OAS3, pins 3.1 down to 3.0.3 for
// the UI, and fills the servers array when the generator left it out
func ensureServers(spec map[string]any, url string) {
	if _, hasSwagger := spec["swagger"]; hasSwagger {
		spec["openapi"] = "3.0.3"
		delete(spec, "swagger")
	}
	if v, ok := spec["openapi"].(string); ok {
		if strings.HasPrefix(v, "3.1") {
			spec["openapi"] = "3.0.3"
		}
	} else {
		spec["openapi"] = "3.0.3"
	}
	if _, ok := spec["servers"]; !ok {
		spec["servers"] = []any{map[string]any{"url": url}}
	}
}

// ensureErrorEnvelopeSchema mirrors the runtime error wire so the injected
// responses have a schema to reference
func ensureErrorEnvelopeSchema(spec map[string]any) {
	comps, ok := spec["components"].(map[string]any)
	if !ok {
		comps = map[string]any{}
		spec["components"] = comps
	}
	schemas, ok := comps["schemas"].(map[string]any)
	if !ok {
		schemas = map[string]any{}
		comps["schemas"] = schemas
	}
	if _, ok := schemas["ErrorEnvelope"]; ok {
		return
	}
	schemas["ErrorEnvelope"] = map[string]any{
		"type":        "object",
		"description": "Standard error envelope",
		"properties": map[string]any{
			"success": map[string]any{"type": "boolean"},
			"error": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code":    map[string]any{"type": "string"},
					"message": map[string]any{"type": "string"},
					"field":   map[string]any{"type": "string"},
				},
			},
			"request_id": map[string]any{"type": "string"},
		},
		"required": []any{"success"},
	}
}

func errorResponse(description string, example map[string]any) map[string]any {
	return map[string]any{
		"description": description,
		"content": map[string]any{
			"application/json": map[string]any{
				"schema":  map[string]any{"$ref": "#/components/schemas/ErrorEnvelope"},
				"example": example,
			},
		},
	}
}

// injectDefaultResponse walks every operation and adds resp under status
// when the annotation did not declare one
func injectDefaultResponse(spec map[string]any, status string, resp map[string]any) {
	paths, ok := spec["paths"].(map[string]any)
	if !ok {
		return
	}
	for _, p := range paths {
		node, ok := p.(map[string]any)
		if !ok {
			continue
		}
		for _, opAny := range node {
			op, ok := opAny.(map[string]any)
			if !ok {
				continue
			}
			responses, ok := op["responses"].(map[string]any)
			if !ok {
				responses = map[string]any{}
				op["responses"] = responses
			}
			if _, exists := responses[status]; !exists {
				responses[status] = resp
			}
		}
	}
}
