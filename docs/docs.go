// Package docs holds the OpenAPI document served at /swagger/doc.json.
// Regenerate with: swag init -g cmd/sysinfo/main.go -o docs
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
        "/api/SystemInfo": {
            "get": {
                "description": "Returns one complete host telemetry snapshot.",
                "produces": ["application/json"],
                "tags": ["SystemInfo"],
                "summary": "Full system information",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/models.SystemInfoResponse"}
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {"$ref": "#/definitions/server.Problem"}
                    }
                }
            }
        },
        "/api/SystemInfo/{metric}": {
            "get": {
                "description": "Returns a single projection of the snapshot: cpu, memory, os or uptime (case-insensitive).",
                "produces": ["application/json"],
                "tags": ["SystemInfo"],
                "summary": "Single metric",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Metric name",
                        "name": "metric",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "404": {
                        "description": "Not Found",
                        "schema": {"$ref": "#/definitions/server.Problem"}
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {"$ref": "#/definitions/server.Problem"}
                    }
                }
            }
        },
        "/ws/SystemInfo": {
            "get": {
                "description": "Upgrades to a WebSocket and pushes one JSON snapshot per interval until the client disconnects.",
                "tags": ["SystemInfo"],
                "summary": "Stream snapshots",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Update interval in milliseconds; values <= 0 use the server default",
                        "name": "intervalMs",
                        "in": "query"
                    }
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/server.Problem"}
                    }
                }
            }
        },
        "/api/v1/health": {
            "get": {
                "description": "Reports overall status, version and per-module health.",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Server health",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/models.HealthResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "models.MemoryInfo": {
            "type": "object",
            "properties": {
                "totalBytes": {"type": "integer", "example": 17179869184},
                "usedBytes": {"type": "integer", "example": 6442450944},
                "freeBytes": {"type": "integer", "example": 10737418240},
                "usagePercent": {"type": "number", "example": 37.5}
            }
        },
        "models.SystemInfoResponse": {
            "type": "object",
            "properties": {
                "osName": {"type": "string", "example": "Linux 6.1.0-18-amd64"},
                "osVersion": {"type": "string", "example": "Unix 6.1.0"},
                "cpuUsagePercent": {"type": "number", "example": 23.45},
                "memoryInfo": {"$ref": "#/definitions/models.MemoryInfo"},
                "uptimeSeconds": {"type": "integer", "example": 86400},
                "timestamp": {"type": "integer", "example": 1735689600}
            }
        },
        "models.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "healthy"},
                "version": {"type": "string", "example": "1.0.0"},
                "modules": {
                    "type": "object",
                    "additionalProperties": {"type": "string"}
                }
            }
        },
        "server.Problem": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "title": {"type": "string"},
                "status": {"type": "integer"},
                "detail": {"type": "string"},
                "instance": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "SysInfo API",
	Description:      "Host telemetry snapshots over REST and WebSocket.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
