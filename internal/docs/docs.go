// Package docs holds the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/leadbot/main.go -o internal/docs
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
        "/chat": {
            "post": {
                "description": "Processes one message from the web widget and returns the assistant reply.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Chat"],
                "summary": "Send a chat message",
                "operationId": "postChat",
                "parameters": [
                    {"type": "string", "description": "Key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Message", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChatResponse"}},
                    "400": {"description": "Missing fields or message too long", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Previous message still being answered", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/history/{sessionId}": {
            "get": {
                "description": "Returns up to 100 visible messages of the session's active conversation, oldest first.",
                "produces": ["application/json"],
                "tags": ["Chat"],
                "summary": "Chat history",
                "operationId": "getChatHistory",
                "parameters": [
                    {"type": "string", "description": "Web session id", "name": "sessionId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HistoryResponse"}},
                    "304": {"description": "Not modified (ETag)"},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/leads": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Most recently contacted first.",
                "produces": ["application/json"],
                "tags": ["Leads"],
                "summary": "List leads",
                "operationId": "listLeads",
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "boolean", "name": "qualified", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LeadPage"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/leads/{id}": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Leads"],
                "summary": "Update lead status",
                "operationId": "updateLead",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateLeadRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Lead"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/crm/forms": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["CRM"],
                "summary": "Forward a contact form to the CRM",
                "operationId": "submitCrmForm",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.FormRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.FormResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.FormError"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ChatRequest": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string", "example": "web-5f0c2a"},
                "message": {"type": "string", "example": "Olá, meu nome é Maria Santos"}
            }
        },
        "handlers.ChatResponse": {
            "type": "object",
            "properties": {
                "response": {"type": "string"},
                "conversationId": {"type": "string"},
                "suggestions": {"type": "array", "items": {"type": "string"}},
                "leadQualified": {"type": "boolean"},
                "shouldTransferToHuman": {"type": "boolean"}
            }
        },
        "handlers.HistoryMessage": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "role": {"type": "string", "example": "assistant"},
                "content": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "handlers.HistoryResponse": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/handlers.HistoryMessage"}},
                "conversationId": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "invalid_request"},
                "message": {"type": "string"}
            }
        },
        "handlers.LeadPage": {
            "type": "object",
            "properties": {
                "leads": {"type": "array", "items": {"$ref": "#/definitions/domain.Lead"}},
                "total": {"type": "integer"},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"}
            }
        },
        "handlers.UpdateLeadRequest": {
            "type": "object",
            "properties": {"status": {"type": "string", "example": "contacted"}}
        },
        "handlers.FormRequest": {
            "type": "object",
            "properties": {
                "nome": {"type": "string"},
                "email": {"type": "string"},
                "telefone": {"type": "string"}
            }
        },
        "handlers.FormResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "warning": {"type": "string"}
            }
        },
        "handlers.FormError": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"},
                "required": {"type": "array", "items": {"type": "string"}}
            }
        },
        "domain.Lead": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "session_id": {"type": "string"},
                "conversation_id": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "family_situation": {"type": "string"},
                "immigration_goals": {"type": "string"},
                "budget_range": {"type": "string"},
                "timeline": {"type": "string"},
                "qualification_score": {"type": "integer"},
                "is_qualified": {"type": "boolean"},
                "status": {"type": "string"},
                "crm_synced_at": {"type": "string"},
                "first_contact_at": {"type": "string"},
                "last_contact_at": {"type": "string"}
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
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Lead Qualifier API",
	Description:      "Web chat, WhatsApp webhook and lead administration for the immigration lead qualification agent.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
