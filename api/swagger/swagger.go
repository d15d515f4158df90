package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Weekly course timetable generation with greedy, backtracking, genetic and repair strategies.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetables", "description": "Scheduling runs, asynchronous jobs and exports"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/timetables": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate a weekly timetable",
                "description": "The body may be the bare course group array; every option then takes its configured default.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "seed", "in": "query", "type": "integer", "required": false, "description": "Random seed, overrides the body"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "201": {"description": "Run stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No schedulable sessions", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "504": {"description": "Run timed out", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Timetables"],
                "summary": "List stored timetable runs",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "strategy", "in": "query", "type": "string", "enum": ["greedy", "backtracking", "genetic", "repair", "pipeline"]},
                    {"name": "success", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/jobs": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Queue an asynchronous timetable run",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "seed", "in": "query", "type": "integer", "required": false},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Queue full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/jobs/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get the state of an asynchronous run",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get a stored timetable run",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetables"],
                "summary": "Delete a stored timetable run",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/exports": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Render a stored run and return a signed download link",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportTimetableRequest"}}
                ],
                "responses": {
                    "201": {"description": "Export stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown format, view or key", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Run not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Download a rendered timetable",
                "produces": ["text/csv", "application/pdf", "application/json"],
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File contents"},
                    "403": {"description": "Invalid token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link or file expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Aggregated service counters",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SessionSpec": {
            "type": "object",
            "required": ["duration"],
            "properties": {
                "duration": {"type": "string", "example": "1:30"},
                "roomid": {"type": "array", "items": {"type": "string"}},
                "employeeid": {"type": "string"},
                "day": {"type": "array", "items": {"type": "string"}},
                "Type": {"type": "string", "example": "overload"},
                "roomChoice": {"type": "boolean"}
            }
        },
        "CourseEntry": {
            "type": "object",
            "required": ["courseid", "section"],
            "properties": {
                "courseid": {"type": "string"},
                "coursename": {"type": "string"},
                "section": {"type": "string"},
                "classschedule": {"type": "array", "items": {"$ref": "#/definitions/SessionSpec"}}
            }
        },
        "CourseGroup": {
            "type": "object",
            "required": ["Courses"],
            "properties": {
                "Courses": {"type": "array", "items": {"$ref": "#/definitions/CourseEntry"}}
            }
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "required": ["groups"],
            "properties": {
                "strategy": {"type": "string", "enum": ["greedy", "backtracking", "genetic", "repair", "pipeline"]},
                "seed": {"type": "integer"},
                "allowForced": {"type": "boolean"},
                "extendedWindow": {"type": "boolean"},
                "geneticAttempts": {"type": "integer"},
                "generations": {"type": "integer"},
                "populationSize": {"type": "integer"},
                "groups": {"type": "array", "items": {"$ref": "#/definitions/CourseGroup"}}
            }
        },
        "ExportTimetableRequest": {
            "type": "object",
            "required": ["format"],
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf", "json"]},
                "view": {"type": "string", "enum": ["flat", "unplaced", "section", "room", "instructor"]},
                "key": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
