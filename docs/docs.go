// Package docs holds the swagger description of the genai-chat gateway.
// Regenerate with: swag init -g internal/api/server/server.go
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
        "/api/v1/chat/invoke": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["chat"],
                "summary": "Send one conversation",
                "parameters": [
                    {"description": "Conversation and options", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ChatResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/api/v1/chat/stream": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["text/event-stream"],
                "tags": ["chat"],
                "summary": "Stream the reply to one conversation",
                "parameters": [
                    {"description": "Conversation and options", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ChunkResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/api/v1/chat/batch": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["chat"],
                "summary": "Send several conversations",
                "parameters": [
                    {"description": "Conversations and shared options", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.BatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.BatchResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/api/v1/chat/tokens": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["chat"],
                "summary": "Count prompt tokens",
                "parameters": [
                    {"description": "Text or conversation", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.TokensRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.TokensResponse"}},
                    "501": {"description": "Not Implemented", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/api/v1/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["stats"],
                "summary": "Request statistics across models",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/api/v1/stats/{model}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["stats"],
                "summary": "Request statistics of one model",
                "parameters": [
                    {"type": "string", "description": "Model name", "name": "model", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        }
    },
    "definitions": {
        "dto.MessageRequest": {
            "type": "object",
            "required": ["role"],
            "properties": {
                "role": {"type": "string", "enum": ["system", "human", "user", "ai", "assistant", "model", "tool"]},
                "content": {"type": "string"},
                "images": {"type": "array", "items": {"type": "string"}},
                "name": {"type": "string"},
                "tool_call_id": {"type": "string"}
            }
        },
        "dto.OptionsRequest": {
            "type": "object",
            "properties": {
                "temperature": {"type": "number"},
                "top_p": {"type": "number"},
                "top_k": {"type": "number"},
                "max_output_tokens": {"type": "integer"},
                "stop": {"type": "array", "items": {"type": "string"}},
                "safety_settings": {"type": "object", "additionalProperties": {"type": "string"}},
                "tool_choice": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}}
            }
        },
        "dto.ChatRequest": {
            "type": "object",
            "required": ["messages"],
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/dto.MessageRequest"}},
                "options": {"$ref": "#/definitions/dto.OptionsRequest"}
            }
        },
        "dto.BatchRequest": {
            "type": "object",
            "required": ["conversations"],
            "properties": {
                "conversations": {"type": "array", "items": {"type": "array", "items": {"$ref": "#/definitions/dto.MessageRequest"}}},
                "options": {"$ref": "#/definitions/dto.OptionsRequest"}
            }
        },
        "dto.TokensRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/dto.MessageRequest"}}
            }
        },
        "dto.ChatResponse": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "finish_reason": {"type": "string"},
                "model": {"type": "string"}
            }
        },
        "dto.ChunkResponse": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "finish_reason": {"type": "string"}
            }
        },
        "dto.BatchResponse": {
            "type": "object",
            "properties": {
                "failed": {"type": "integer"},
                "results": {"type": "array", "items": {"type": "object"}}
            }
        },
        "dto.TokensResponse": {
            "type": "object",
            "properties": {
                "model": {"type": "string"},
                "tokens": {"type": "integer"}
            }
        },
        "errors.APIError": {
            "type": "object",
            "properties": {
                "kind": {"type": "string"},
                "message": {"type": "string"},
                "code": {"type": "string"},
                "request_id": {"type": "string"},
                "retryable": {"type": "boolean"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "genai-chat API",
	Description:      "HTTP gateway over the Gemini chat model client.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
