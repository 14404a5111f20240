// Package docs registers the OpenAPI description served at /swagger/*any.
// Regenerate with: swag init -g cmd/dashboard/main.go -o docs
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
        "/stats": {
            "get": {
                "description": "Returns the cached snapshot for the period. The first request for a period waits for the fetch unless wait=false. Fetch failures are reported in the error field with HTTP 200; stale data is kept.",
                "produces": ["application/json"],
                "tags": ["Statistics"],
                "summary": "Statistics for a period",
                "operationId": "getStatistics",
                "parameters": [
                    {"$ref": "#/parameters/period"},
                    {"type": "boolean", "default": true, "description": "Wait for the first fetch", "name": "wait", "in": "query"},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.StatisticsResponse"}, "headers": {"ETag": {"type": "string", "description": "Weak ETag for the cached snapshot"}}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Invalid period", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Cache closed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "504": {"description": "Request ended before the first fetch", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/stats/stream": {
            "get": {
                "description": "Server-sent events. A \"state\" event carries the current state on connect and after every cache transition; \"ping\" events keep idle connections open.",
                "produces": ["text/event-stream"],
                "tags": ["Statistics"],
                "summary": "Live statistics stream",
                "operationId": "streamStatistics",
                "parameters": [
                    {"$ref": "#/parameters/period"},
                    {"type": "boolean", "default": false, "description": "Send formatted dashboard views", "name": "view", "in": "query"},
                    {"type": "integer", "default": 15, "minimum": 5, "maximum": 120, "description": "Ping interval in seconds", "name": "heartbeat", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "event stream", "schema": {"type": "string"}},
                    "400": {"description": "Invalid period", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Cache closed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/stats/refetch": {
            "post": {
                "description": "Forces a new fetch for the period. Cached data keeps being served meanwhile.",
                "produces": ["application/json"],
                "tags": ["Statistics"],
                "summary": "Retry a period",
                "operationId": "refetchStatistics",
                "parameters": [{"$ref": "#/parameters/period"}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/handlers.StatisticsResponse"}},
                    "400": {"description": "Invalid period", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Cache closed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/stats/cache": {
            "get": {
                "description": "Lists statistics cache entries plus the upstream circuit breaker state and counters.",
                "produces": ["application/json"],
                "tags": ["Statistics"],
                "summary": "Cache diagnostics",
                "operationId": "cacheEntries",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CacheResponse"}}
                }
            }
        },
        "/dashboard": {
            "get": {
                "description": "Returns summary cards, chart series, recent dialogs and top users with localized labels, numbers and relative times.",
                "produces": ["application/json"],
                "tags": ["Statistics"],
                "summary": "Formatted dashboard view",
                "operationId": "getDashboard",
                "parameters": [{"$ref": "#/parameters/period"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.DashboardResponse"}},
                    "400": {"description": "Invalid period", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Dashboard not configured", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/upstream/health": {
            "get": {
                "description": "Calls the backend health endpoint and reports its status.",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Statistics backend liveness",
                "operationId": "upstreamHealth",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.UpstreamHealthResponse"}},
                    "502": {"description": "Backend unreachable or invalid response", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Backend client not configured", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "parameters": {
        "period": {"enum": ["day", "week", "month"], "type": "string", "default": "week", "description": "Reporting period", "name": "period", "in": "query"}
    },
    "definitions": {
        "domain.Summary": {
            "type": "object",
            "properties": {
                "total_users": {"type": "integer", "example": 150},
                "total_messages": {"type": "integer", "example": 4523},
                "active_dialogs": {"type": "integer", "example": 89}
            }
        },
        "domain.ActivityPoint": {
            "type": "object",
            "properties": {
                "timestamp": {"type": "string", "example": "2025-10-17T10:00:00Z"},
                "message_count": {"type": "integer", "example": 145},
                "active_users": {"type": "integer", "example": 42}
            }
        },
        "domain.RecentDialog": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer", "example": 123456789},
                "message_count": {"type": "integer", "example": 25},
                "last_message_at": {"type": "string", "example": "2025-10-17T15:30:00Z"},
                "duration_minutes": {"type": "integer", "example": 45}
            }
        },
        "domain.TopUser": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer", "example": 123456789},
                "total_messages": {"type": "integer", "example": 523},
                "dialog_count": {"type": "integer", "example": 45},
                "last_activity": {"type": "string", "example": "2025-10-17T15:30:00Z"}
            }
        },
        "domain.StatisticsSnapshot": {
            "type": "object",
            "properties": {
                "summary": {"$ref": "#/definitions/domain.Summary"},
                "activity_timeline": {"type": "array", "items": {"$ref": "#/definitions/domain.ActivityPoint"}},
                "recent_dialogs": {"type": "array", "items": {"$ref": "#/definitions/domain.RecentDialog"}},
                "top_users": {"type": "array", "items": {"$ref": "#/definitions/domain.TopUser"}}
            }
        },
        "handlers.ErrorBody": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "transport_error"},
                "message": {"type": "string", "example": "fetch_statistics: status 503"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"},
                "code": {"type": "string", "example": "bad_request"},
                "message": {"type": "string", "example": "period must be one of day, week, month"}
            }
        },
        "handlers.StatisticsResponse": {
            "type": "object",
            "properties": {
                "period": {"type": "string", "example": "week"},
                "data": {"$ref": "#/definitions/domain.StatisticsSnapshot"},
                "is_loading": {"type": "boolean"},
                "is_fetching": {"type": "boolean"},
                "status": {"type": "string", "example": "fresh"},
                "updated_at": {"type": "string", "format": "date-time"},
                "error": {"$ref": "#/definitions/handlers.ErrorBody"}
            }
        },
        "services.SummaryCard": {
            "type": "object",
            "properties": {
                "key": {"type": "string", "example": "total_users"},
                "title": {"type": "string", "example": "Всего пользователей"},
                "description": {"type": "string", "example": "Уникальные пользователи"},
                "value": {"type": "integer", "example": 1250},
                "display": {"type": "string", "example": "1 250"},
                "compact": {"type": "string", "example": "1,3 тыс."}
            }
        },
        "services.ChartPoint": {
            "type": "object",
            "properties": {
                "timestamp": {"type": "string", "example": "2025-10-17T14:00:00"},
                "label": {"type": "string", "example": "14:00"},
                "message_count": {"type": "integer", "example": 150},
                "active_users": {"type": "integer", "example": 45}
            }
        },
        "services.DialogRow": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer", "example": 123456789},
                "message_count": {"type": "integer", "example": 15},
                "last_message_at": {"type": "string", "example": "2025-10-17T15:30:00"},
                "last_message": {"type": "string", "example": "5 минут назад"},
                "duration": {"type": "string", "example": "25 мин"}
            }
        },
        "services.TopUserRow": {
            "type": "object",
            "properties": {
                "rank": {"type": "integer", "example": 1},
                "badge": {"type": "string", "example": "🥇"},
                "user_id": {"type": "integer", "example": 123456789},
                "total_messages": {"type": "integer", "example": 250},
                "display": {"type": "string", "example": "250"},
                "dialog_count": {"type": "integer", "example": 12},
                "last_activity": {"type": "string", "example": "2 часа назад"}
            }
        },
        "handlers.DashboardResponse": {
            "type": "object",
            "properties": {
                "period": {"type": "string", "example": "week"},
                "is_loading": {"type": "boolean"},
                "is_fetching": {"type": "boolean"},
                "updated_at": {"type": "string", "format": "date-time"},
                "empty": {"type": "boolean"},
                "summary": {"type": "array", "items": {"$ref": "#/definitions/services.SummaryCard"}},
                "chart": {"type": "array", "items": {"$ref": "#/definitions/services.ChartPoint"}},
                "recent_dialogs": {"type": "array", "items": {"$ref": "#/definitions/services.DialogRow"}},
                "top_users": {"type": "array", "items": {"$ref": "#/definitions/services.TopUserRow"}},
                "error": {"$ref": "#/definitions/handlers.ErrorBody"}
            }
        },
        "query.EntryInfo": {
            "type": "object",
            "properties": {
                "key": {"type": "string", "example": "stats:week"},
                "status": {"type": "string", "example": "fresh"},
                "fetching": {"type": "boolean"},
                "observers": {"type": "integer", "example": 1},
                "has_data": {"type": "boolean"},
                "updated_at": {"type": "string", "format": "date-time"},
                "last_used": {"type": "string", "format": "date-time"},
                "error": {"type": "string"}
            }
        },
        "handlers.CacheResponse": {
            "type": "object",
            "properties": {
                "breaker": {"type": "string", "example": "closed"},
                "breaker_stats": {"$ref": "#/definitions/query.BreakerStats"},
                "entries": {"type": "array", "items": {"$ref": "#/definitions/query.EntryInfo"}}
            }
        },
        "query.BreakerStats": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "stats-upstream"},
                "state": {"type": "string", "example": "closed"},
                "requests": {"type": "integer", "example": 12},
                "total_successes": {"type": "integer", "example": 11},
                "total_failures": {"type": "integer", "example": 1},
                "consecutive_successes": {"type": "integer", "example": 3},
                "consecutive_failures": {"type": "integer", "example": 0}
            }
        },
        "handlers.UpstreamHealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "breaker": {"type": "string", "example": "closed"}
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
	Title:            "Bot Statistics Dashboard API",
	Description:      "Period-scoped, cached statistics of the Telegram bot backend, formatted for the dashboard.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
