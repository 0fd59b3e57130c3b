// Package docs registers the OpenAPI document served under /swagger.
// Maintained by hand in the swag template format; running swag init
// against the handler annotations replaces it.
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
        "/polls": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["polls"],
                "summary": "Create a poll",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "missing title or candidates"}
                }
            }
        },
        "/polls/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["polls"],
                "summary": "Poll snapshot with aggregation",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "poll not found"}
                }
            }
        },
        "/polls/{id}/participants": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["participants"],
                "summary": "Submit an availability response",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "missing name or incomplete answers"},
                    "404": {"description": "poll not found"},
                    "502": {"description": "store declined the write"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Chousei Poll API",
	Description:      "Availability poll engine with live synchronization",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
