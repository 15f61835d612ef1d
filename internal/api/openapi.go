package api

import (
	"net/http"

	"github.com/mattjoyce/issuegate/internal/apierror"
)

type route struct {
	method      string
	path        string
	operationID string
	summary     string
	success     string
	body        map[string]any
	params      []map[string]any
}

var numberParam = map[string]any{
	"name": "number", "in": "path", "required": true,
	"schema": map[string]any{"type": "integer", "minimum": 1},
}

func queryParam(name string, schema map[string]any) map[string]any {
	return map[string]any{"name": name, "in": "query", "required": false, "schema": schema}
}

var routes = []route{
	{
		method: "post", path: "/issues", operationID: "createIssue", summary: "Create an issue", success: "201",
		body: objectSchema([]string{"title"}, map[string]any{
			"title":  map[string]any{"type": "string", "minLength": 1},
			"body":   map[string]any{"type": "string"},
			"labels": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		}),
	},
	{
		method: "get", path: "/issues", operationID: "listIssues", summary: "List issues (pull requests excluded)", success: "200",
		params: []map[string]any{
			queryParam("state", map[string]any{"type": "string", "enum": []string{"open", "closed", "all"}, "default": "open"}),
			queryParam("labels", map[string]any{"type": "string"}),
			queryParam("page", map[string]any{"type": "integer", "minimum": 1, "default": 1}),
			queryParam("per_page", map[string]any{"type": "integer", "minimum": 1, "maximum": maxPerPage, "default": defaultPerPage}),
		},
	},
	{method: "get", path: "/issues/{number}", operationID: "getIssue", summary: "Fetch one issue", success: "200", params: []map[string]any{numberParam}},
	{
		method: "patch", path: "/issues/{number}", operationID: "updateIssue", summary: "Update an issue", success: "200",
		params: []map[string]any{numberParam},
		body: objectSchema(nil, map[string]any{
			"title": map[string]any{"type": "string", "minLength": 1},
			"body":  map[string]any{"type": "string"},
			"state": map[string]any{"type": "string", "enum": []string{"open", "closed"}},
		}),
	},
	{
		method: "post", path: "/issues/{number}/comments", operationID: "createComment", summary: "Comment on an issue", success: "201",
		params: []map[string]any{numberParam},
		body:   objectSchema([]string{"body"}, map[string]any{"body": map[string]any{"type": "string", "minLength": 1}}),
	},
	{method: "post", path: "/webhook", operationID: "receiveWebhook", summary: "Ingest a signed webhook delivery", success: "204"},
	{
		method: "get", path: "/events", operationID: "listEvents", summary: "Stored deliveries, newest first", success: "200",
		params: []map[string]any{
			queryParam("limit", map[string]any{"type": "integer", "minimum": 1, "maximum": maxEventsLimit, "default": defaultEventsLimit}),
			queryParam("include_payload", map[string]any{"type": "boolean", "default": false}),
		},
	},
	{method: "get", path: "/healthz", operationID: "healthz", summary: "Liveness", success: "200"},
}

func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the gateway routes.
func buildOpenAPIDoc() map[string]any {
	paths := map[string]any{}
	for _, rt := range routes {
		operation := map[string]any{
			"operationId": rt.operationID,
			"summary":     rt.summary,
			"responses": map[string]any{
				rt.success: map[string]any{"description": "Success"},
				"default": map[string]any{
					"description": "Error envelope",
					"content": map[string]any{
						"application/json": map[string]any{"schema": map[string]any{"$ref": "#/components/schemas/Error"}},
					},
				},
			},
		}
		if len(rt.params) > 0 {
			operation["parameters"] = rt.params
		}
		if rt.body != nil {
			operation["requestBody"] = map[string]any{
				"required": true,
				"content":  map[string]any{"application/json": map[string]any{"schema": rt.body}},
			}
		}

		item, ok := paths[rt.path].(map[string]any)
		if !ok {
			item = map[string]any{}
			paths[rt.path] = item
		}
		item[rt.method] = operation
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "issuegate",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": map[string]any{
				"Error": objectSchema([]string{"error", "message"}, map[string]any{
					"error":   map[string]any{"type": "string"},
					"message": map[string]any{"type": "string"},
					"details": map[string]any{"type": "object"},
				}),
			},
		},
	}
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	apierror.WriteJSON(w, http.StatusOK, buildOpenAPIDoc())
}
