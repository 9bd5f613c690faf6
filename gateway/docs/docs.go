// Package docs registers the storefront's OpenAPI description with swag so
// that /swagger/*any can serve it.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Register a customer account", "responses": {"201": {"description": "Created"}, "400": {"description": "Invalid input"}, "409": {"description": "Email already registered"}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Open a session", "responses": {"200": {"description": "Token and user"}, "401": {"description": "Bad credentials"}}}},
        "/auth/logout": {"post": {"tags": ["auth"], "security": [{"Bearer": []}], "summary": "Close the session", "responses": {"204": {"description": "No Content"}}}},
        "/profile": {
            "get": {"tags": ["profile"], "security": [{"Bearer": []}], "summary": "Current user", "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["profile"], "security": [{"Bearer": []}], "summary": "Update name, phone or address", "responses": {"200": {"description": "OK"}}}
        },
        "/banking": {"get": {"tags": ["banking"], "summary": "Bank transfer destination", "responses": {"200": {"description": "OK"}, "404": {"description": "Not configured"}}}},
        "/orders": {
            "get": {"tags": ["orders"], "security": [{"Bearer": []}], "summary": "List the current customer's orders", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["orders"], "security": [{"Bearer": []}], "summary": "Place an order", "responses": {"201": {"description": "Created"}, "400": {"description": "Invalid input"}, "409": {"description": "An unpaid order is pending"}}}
        },
        "/orders/{id}": {"get": {"tags": ["orders"], "security": [{"Bearer": []}], "summary": "One of the customer's orders", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}},
        "/admin/dashboard": {"get": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "Status counts and daily revenue", "parameters": [{"name": "days", "in": "query", "type": "integer"}], "responses": {"200": {"description": "OK"}}}},
        "/admin/orders": {"get": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "Search orders", "parameters": [{"name": "status", "in": "query", "type": "string"}, {"name": "paymentStatus", "in": "query", "type": "string"}, {"name": "q", "in": "query", "type": "string"}, {"name": "page", "in": "query", "type": "integer"}, {"name": "limit", "in": "query", "type": "integer"}], "responses": {"200": {"description": "OK"}}}},
        "/admin/orders/{id}": {"get": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "Order with allowed next statuses", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}},
        "/admin/orders/{id}/status": {"patch": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "Move an order along its lifecycle", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "400": {"description": "Transition not allowed"}, "409": {"description": "Changed concurrently"}}}},
        "/admin/orders/{id}/payment": {"patch": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "Confirm payment", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "400": {"description": "Payment cannot be confirmed"}}}},
        "/admin/notifications": {"get": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "Newest notifications and unread count", "responses": {"200": {"description": "OK"}}}},
        "/admin/notifications/{id}/read": {"patch": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "Mark a notification read", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "No Content"}}}},
        "/admin/banking": {"put": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "Save banking settings", "responses": {"200": {"description": "OK"}}}}
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Flowershop API",
	Description:      "Storefront and admin API of the flower shop.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
