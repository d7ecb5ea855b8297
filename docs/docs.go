// Package docs registers the dashboard OpenAPI description with swag.
// Regenerate with: swag init -g cmd/monitor/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/auth/sign-up": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register operator",
                "parameters": [{"description": "Credentials", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.operatorCredentials"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "integer"}}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/auth/sign-in": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign in",
                "parameters": [{"description": "Credentials", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.operatorCredentials"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/roaster/state": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["roaster"],
                "summary": "Current roaster state",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Tick"}}}
            }
        },
        "/api/v1/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["roaster"],
                "summary": "Drain relay messages",
                "parameters": [{"type": "integer", "default": 30, "description": "At most this many messages (1..30)", "name": "max", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/telemetry.Message"}}}}
            }
        },
        "/api/v1/roasts": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["roasts"],
                "summary": "List roasts",
                "parameters": [{"type": "integer", "default": 50, "description": "Maximum number of roasts, newest first", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "count, roasts", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/api/v1/roasts/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["roasts"],
                "summary": "Get roast",
                "parameters": [{"type": "string", "description": "Roast id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Roast"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/roasts/{id}/ticks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["roasts"],
                "summary": "Roast ticks",
                "parameters": [{"type": "string", "description": "Roast id", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "count, ticks", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/api/v1/logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["logs"],
                "summary": "List logs",
                "parameters": [
                    {"type": "string", "description": "Start of range", "name": "from", "in": "query"},
                    {"type": "string", "description": "End of range; date-only means end of day", "name": "to", "in": "query"},
                    {"enum": ["START", "STOP", "PHASE", "STATUS", "WARNING", "ERROR"], "type": "string", "description": "Event type", "name": "type", "in": "query"},
                    {"type": "string", "description": "Only events of this roast", "name": "roast_id", "in": "query"}
                ],
                "responses": {"200": {"description": "count, events", "schema": {"type": "object", "additionalProperties": true}}}
            }
        }
    },
    "definitions": {
        "handlers.operatorCredentials": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"password": {"type": "string"}, "username": {"type": "string"}}
        },
        "telemetry.Message": {
            "type": "object",
            "properties": {"channel": {"type": "string"}, "data": {"type": "object"}}
        },
        "models.Roast": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "automatic": {"type": "boolean"},
                "strategy": {"type": "string"},
                "profile_path": {"type": "string"},
                "final_bean_temp": {"type": "integer"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"},
                "export_path": {"type": "string"}
            }
        },
        "models.Tick": {
            "type": "object",
            "properties": {
                "roast_id": {"type": "string"},
                "datetime": {"type": "string"},
                "bean_entrance_open": {"type": "boolean"},
                "bean_exit_open": {"type": "boolean"},
                "cooler_exit_open": {"type": "boolean"},
                "mixer_on": {"type": "boolean"},
                "cooler_on": {"type": "boolean"},
                "burner_on": {"type": "boolean"},
                "cylinder_on": {"type": "boolean"},
                "powered": {"type": "boolean"},
                "roasting": {"type": "boolean"},
                "temp_bean": {"type": "integer"},
                "temp_air": {"type": "integer"},
                "temp_fire": {"type": "integer"},
                "temp_goal": {"type": "integer"},
                "temp_cooler": {"type": "integer"},
                "servo_position": {"type": "integer"},
                "roast_time": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Roaster dashboard API",
	Description:      "Live roaster telemetry, recorded roasts and the roast log.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
