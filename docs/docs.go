// Package docs registers the tablepos OpenAPI document with swag.
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
        "/login": {
            "post": {
                "summary": "Login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "creds", "required": true, "schema": {"$ref": "#/definitions/api.loginRequest"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/orders": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "summary": "List orders by table or state",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "table", "in": "query"},
                    {"type": "string", "name": "state", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/order.Order"}}}}
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "summary": "Create order",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "order", "required": true, "schema": {"$ref": "#/definitions/api.createOrderRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/order.Order"}}}
            }
        },
        "/orders/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "summary": "Get order",
                "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}}, "404": {"description": "Not Found"}}
            }
        },
        "/orders/{id}/items": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "summary": "Add item",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "item", "required": true, "schema": {"$ref": "#/definitions/order.LineItem"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}}, "409": {"description": "Conflict"}}
            }
        },
        "/orders/{id}/items/{pos}": {
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "summary": "Remove item",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "name": "pos", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}}, "409": {"description": "Conflict"}}
            }
        },
        "/orders/{id}/state": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "summary": "Change order state",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "state", "required": true, "schema": {"$ref": "#/definitions/api.stateRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}}, "409": {"description": "Conflict"}}
            }
        },
        "/orders/{id}/payment": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "summary": "Get payment",
                "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Payment"}}}
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "summary": "Process payment",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "payment", "required": true, "schema": {"$ref": "#/definitions/api.paymentRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/order.Payment"}}, "409": {"description": "Conflict"}}
            }
        },
        "/settings": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "summary": "Get restaurant settings",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/settings.Settings"}}}
            },
            "patch": {
                "security": [{"ApiKeyAuth": []}],
                "summary": "Update restaurant settings",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "patch", "required": true, "schema": {"$ref": "#/definitions/api.settingsRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.settingsResponse"}}}
            }
        }
    },
    "definitions": {
        "api.loginRequest": {"type": "object", "properties": {"username": {"type": "string"}, "password": {"type": "string"}}},
        "api.createOrderRequest": {"type": "object", "properties": {"table": {"type": "integer"}}},
        "api.stateRequest": {"type": "object", "properties": {"state": {"type": "string"}}},
        "api.paymentRequest": {"type": "object", "properties": {"method": {"type": "string"}, "tip": {"type": "string"}}},
        "api.settingsRequest": {"type": "object", "properties": {
            "name": {"type": "string"}, "tax_rate": {"type": "number"}, "tip_rate": {"type": "number"},
            "currency": {"type": "string"}, "address": {"type": "string"}, "phone": {"type": "string"},
            "email": {"type": "string"}, "schedule": {"type": "string"}, "capacity": {"type": "integer"},
            "max_wait_minutes": {"type": "integer"}}},
        "api.settingsResponse": {"type": "object", "properties": {"settings": {"$ref": "#/definitions/settings.Settings"}, "warning": {"type": "string"}}},
        "order.LineItem": {"type": "object", "properties": {"menu_item": {"type": "string"}, "quantity": {"type": "integer"}, "unit_price": {"type": "string"}, "notes": {"type": "string"}}},
        "order.Order": {"type": "object", "properties": {
            "id": {"type": "integer"}, "table": {"type": "integer"}, "state": {"type": "string"},
            "items": {"type": "array", "items": {"$ref": "#/definitions/order.LineItem"}},
            "created_by": {"type": "string"}, "created_at": {"type": "string"},
            "subtotal": {"type": "string"}, "tax": {"type": "string"}, "total": {"type": "string"}}},
        "order.Payment": {"type": "object", "properties": {
            "id": {"type": "string"}, "order_id": {"type": "integer"}, "method": {"type": "string"},
            "amount": {"type": "string"}, "tip": {"type": "string"}, "processed_by": {"type": "string"}, "created_at": {"type": "string"}}},
        "settings.Settings": {"type": "object", "properties": {
            "name": {"type": "string"}, "tax_rate": {"type": "number"}, "tip_rate": {"type": "number"},
            "currency": {"type": "string"}, "address": {"type": "string"}, "phone": {"type": "string"},
            "email": {"type": "string"}, "schedule": {"type": "string"}, "capacity": {"type": "integer"},
            "max_wait_minutes": {"type": "integer"}}}
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-Session-ID", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8443",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "tablepos API",
	Description:      "Restaurant point-of-sale: orders, state changes, payments and settings.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
