// Package docs registers the OpenAPI description served under /swagger.
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
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/status": {
            "get": {
                "description": "State machine, motor, counters, last fault, clock and link state.",
                "produces": ["application/json"],
                "tags": ["feeder"],
                "summary": "Device status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.DeviceStatus"}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/feed": {
            "post": {
                "description": "Dispenses one portion. Rejected while a cycle is running.",
                "produces": ["application/json"],
                "tags": ["feeder"],
                "summary": "Manual feed",
                "responses": {
                    "200": {"description": "status, device", "schema": {"type": "object", "additionalProperties": true}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "504": {"description": "Gateway Timeout", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/schedule": {
            "get": {
                "description": "Returns the stored schedule document byte for byte.",
                "produces": ["application/json"],
                "tags": ["schedule"],
                "summary": "Get schedule",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.ScheduleEntry"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            },
            "put": {
                "description": "Exactly three entries. Every slot becomes eligible again today.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["schedule"],
                "summary": "Replace schedule",
                "parameters": [
                    {
                        "description": "Three schedule entries",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/models.ScheduleEntry"}}
                    }
                ],
                "responses": {
                    "200": {"description": "status, device", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/logs": {
            "get": {
                "description": "Feed, fault and schedule events. 'to' given as a bare date covers that whole day.",
                "produces": ["application/json"],
                "tags": ["logs"],
                "summary": "List feed events",
                "parameters": [
                    {"type": "string", "example": "2025-08-01", "name": "from", "in": "query"},
                    {"type": "string", "example": "2025-08-31", "name": "to", "in": "query"},
                    {
                        "enum": ["FEED_START", "FEED_DONE", "STATE_CHANGE", "FAULT", "SCHEDULE_UPDATE", "SCHEDULE_RESET", "RECOVERY"],
                        "type": "string",
                        "name": "type",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {"description": "count, events", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "models.ScheduleEntry": {
            "type": "object",
            "properties": {
                "hour": {"type": "integer", "example": 8},
                "minute": {"type": "integer", "example": 0},
                "portion": {"type": "integer", "example": 2},
                "lastDayRan": {"type": "integer", "example": 255}
            }
        },
        "models.DeviceStatus": {
            "type": "object",
            "properties": {
                "device_id": {"type": "string"},
                "state": {"type": "string", "enum": ["IDLE", "STARTING", "UNLOCKING", "ROTATING", "LOCKING"]},
                "motor_on": {"type": "boolean"},
                "requested": {"type": "integer"},
                "dispensed": {"type": "integer"},
                "single_shot": {"type": "boolean"},
                "fault": {"type": "string"},
                "clock_synced": {"type": "boolean"},
                "remote_link": {"type": "boolean"},
                "schedule": {"type": "array", "items": {"$ref": "#/definitions/models.ScheduleEntry"}},
                "updated_at": {"type": "string"}
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
	Title:            "Pet Feeder API",
	Description:      "Local control surface of the pet feeder: status, schedule, manual feed and feed log.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
