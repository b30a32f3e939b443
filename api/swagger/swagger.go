package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Diploma Checker API",
        "description": "Verifies diplomas from scanned documents or typed references",
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
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "OCR", "description": "Verification from an uploaded scan"},
        {"name": "Diplomas", "description": "Verification from a typed reference"},
        {"name": "Students", "description": "Students derived from verified diplomas"},
        {"name": "Stats", "description": "Verification activity"}
    ],
    "paths": {
        "/ocr/upload": {
            "post": {
                "tags": ["OCR"],
                "summary": "Verify a diploma from a scan",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true, "description": "PNG, JPEG or PDF (page 2 is read), 5MB max"}
                ],
                "responses": {
                    "200": {"description": "Verification result, found or not", "schema": {"$ref": "#/definitions/VerificationEnvelope"}},
                    "400": {"description": "Missing file", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing or invalid token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "415": {"description": "Unsupported file type", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "504": {"description": "Processing timed out", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ocr/ping": {
            "get": {
                "tags": ["OCR"],
                "summary": "OCR liveness probe",
                "responses": {
                    "200": {"description": "OCR OK"}
                }
            }
        },
        "/diplomes/{reference}": {
            "get": {
                "tags": ["Diplomas"],
                "summary": "Verify a diploma by reference",
                "parameters": [
                    {"name": "reference", "in": "path", "type": "string", "required": true, "description": "5 to 20 alphanumeric characters"}
                ],
                "responses": {
                    "200": {"description": "Diploma found", "schema": {"$ref": "#/definitions/VerificationEnvelope"}},
                    "400": {"description": "Invalid reference", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Diploma not found", "schema": {"$ref": "#/definitions/VerificationEnvelope"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List verified students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "sort_by", "in": "query", "type": "string", "enum": ["full_name", "student_id", "created_at"]},
                    {"name": "sort_order", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "Students", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/export": {
            "get": {
                "tags": ["Students"],
                "summary": "Export the student roster (ADMIN)",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Roster file"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/stats": {
            "get": {
                "tags": ["Stats"],
                "summary": "Verification statistics",
                "responses": {
                    "200": {"description": "Counters and today's searches", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "VerificationResult": {
            "type": "object",
            "properties": {
                "reference": {"type": "string"},
                "found": {"type": "boolean"},
                "data": {"type": "object"},
                "pdfUrl": {"type": "string"},
                "qrCode": {"type": "string", "description": "data:image/png;base64 QR code of pdfUrl"},
                "text": {"type": "string", "description": "Recognised text when no diploma matched"},
                "error": {"type": "string"}
            }
        },
        "VerificationEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/VerificationResult"},
                "error": {"$ref": "#/definitions/APIError"}
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
