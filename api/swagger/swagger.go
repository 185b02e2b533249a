package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Tahfidz Admin API",
        "description": "Administration API for the tahfidz school portal: bulk student and guardian provisioning.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login for administrators, students and guardians"},
        {"name": "Students", "description": "Student roster"},
        {"name": "Student Import", "description": "Bulk student and guardian provisioning"},
        {"name": "Observability", "description": "Metrics and health"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "classId", "type": "string"},
                    {"in": "query", "name": "status", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"},
                    {"in": "query", "name": "sort", "type": "string"},
                    {"in": "query", "name": "order", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/students/import": {
            "post": {
                "tags": ["Student Import"],
                "summary": "Import students and guardians",
                "description": "Rows fail independently; partial success still answers 200.",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/StudentImportRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/StudentImportResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Too many rows", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/students/import/upload": {
            "post": {
                "tags": ["Student Import"],
                "summary": "Import students from an .xlsx or .csv sheet",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "formData", "name": "file", "type": "file", "required": true},
                    {"in": "formData", "name": "autoCreateAccount", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/StudentImportResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/students/import/credentials": {
            "post": {
                "tags": ["Student Import"],
                "summary": "Download new account credentials",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "format", "type": "string", "enum": ["xlsx", "csv", "pdf"]},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CredentialExportRequest"}}
                ],
                "responses": {
                    "200": {"description": "Credential sheet", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/students/import/reports/{token}": {
            "get": {
                "tags": ["Student Import"],
                "summary": "Download an import row report",
                "produces": ["text/csv"],
                "parameters": [
                    {"in": "path", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Report CSV", "schema": {"type": "file"}},
                    "403": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Report not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Metrics snapshot",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ImportStudent": {
            "type": "object",
            "properties": {
                "nama": {"type": "string"},
                "nisn": {"type": "string"},
                "nis": {"type": "string"},
                "jenisKelamin": {"type": "string"},
                "kelasAngkatan": {"type": "string"},
                "kelas": {"type": "string"},
                "tahunAjaranMasuk": {"type": "string"},
                "tanggalLahir": {"type": "string"},
                "alamat": {"type": "string"},
                "noHP": {"type": "string"}
            }
        },
        "ImportGuardian": {
            "type": "object",
            "properties": {
                "jenisWali": {"type": "string"},
                "nama": {"type": "string"},
                "jenisKelamin": {"type": "string"},
                "noHP": {"type": "string"}
            }
        },
        "ImportRow": {
            "type": "object",
            "properties": {
                "student": {"$ref": "#/definitions/ImportStudent"},
                "orangtua": {"$ref": "#/definitions/ImportGuardian"}
            }
        },
        "StudentImportRequest": {
            "type": "object",
            "required": ["data"],
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/ImportRow"}},
                "autoCreateAccount": {"type": "boolean", "default": true}
            }
        },
        "ImportStats": {
            "type": "object",
            "properties": {
                "success": {"type": "integer"},
                "failed": {"type": "integer"},
                "duplicate": {"type": "integer"},
                "total": {"type": "integer"},
                "validated": {"type": "integer"},
                "skipped": {"type": "integer"},
                "createdStudents": {"type": "integer"},
                "createdGuardians": {"type": "integer"},
                "reusedGuardians": {"type": "integer"},
                "createdLinks": {"type": "integer"}
            }
        },
        "NewAccount": {
            "type": "object",
            "required": ["nama", "role", "email", "password"],
            "properties": {
                "nama": {"type": "string"},
                "role": {"type": "string", "enum": ["STUDENT", "GUARDIAN"]},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "keterangan": {"type": "string"}
            }
        },
        "StudentImportResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "stats": {"$ref": "#/definitions/ImportStats"},
                "newAccounts": {"type": "array", "items": {"$ref": "#/definitions/NewAccount"}},
                "errors": {"type": "array", "items": {"type": "string"}},
                "errorsTruncated": {"type": "boolean"},
                "cancelled": {"type": "boolean"},
                "reportUrl": {"type": "string"}
            }
        },
        "CredentialExportRequest": {
            "type": "object",
            "required": ["newAccounts"],
            "properties": {
                "newAccounts": {"type": "array", "items": {"$ref": "#/definitions/NewAccount"}}
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
