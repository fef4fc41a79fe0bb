package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SkipD API",
        "description": "Attendance tracking service for students: users, institutions and subjects",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Login, token refresh and logout"},
        {"name": "Users", "description": "Account management"},
        {"name": "Institutions", "description": "Institutions owned by a user"},
        {"name": "Subjects", "description": "Subjects tracked inside an institution"}
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Dependencies unavailable"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange credentials for a token pair",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid refresh token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke a refresh token",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "204": {"description": "Revoked"}
                }
            }
        },
        "/users": {
            "post": {
                "tags": ["Users"],
                "summary": "Register a new account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get a user",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the account owner"},
                    "404": {"description": "User not found"}
                }
            },
            "patch": {
                "tags": ["Users"],
                "summary": "Update a user",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateUserRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "User not found"},
                    "409": {"description": "Email already registered"}
                }
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Delete a user and everything they own",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "User not found"}
                }
            }
        },
        "/users/{id}/password": {
            "put": {
                "tags": ["Users"],
                "summary": "Change a user's password",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "Changed"},
                    "400": {"description": "Invalid current credentials"}
                }
            }
        },
        "/users/{id}/institutions": {
            "get": {
                "tags": ["Institutions"],
                "summary": "List a user's institutions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the account owner"}
                }
            },
            "post": {
                "tags": ["Institutions"],
                "summary": "Create an institution",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateInstitutionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "User not found"}
                }
            }
        },
        "/institutions/{id}": {
            "get": {
                "tags": ["Institutions"],
                "summary": "Get an institution",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Institution not found"}
                }
            },
            "patch": {
                "tags": ["Institutions"],
                "summary": "Update an institution",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateInstitutionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Institution not found"}
                }
            },
            "delete": {
                "tags": ["Institutions"],
                "summary": "Delete an institution and its subjects",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Institution not found"}
                }
            }
        },
        "/institutions/{id}/subjects": {
            "get": {
                "tags": ["Subjects"],
                "summary": "List an institution's subjects",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Institution not found"}
                }
            },
            "post": {
                "tags": ["Subjects"],
                "summary": "Create a subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSubjectRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Institution not found"}
                }
            }
        },
        "/institutions/{id}/subjects/export": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Export an institution's subjects",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "404": {"description": "Institution not found"},
                    "422": {"description": "Unsupported export format"}
                }
            }
        },
        "/subjects/{id}": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Get a subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Subject not found"}
                }
            },
            "patch": {
                "tags": ["Subjects"],
                "summary": "Update a subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSubjectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Subject not found"}
                }
            },
            "delete": {
                "tags": ["Subjects"],
                "summary": "Delete a subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Subject not found"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "RegisterUserRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "photo_url": {"type": "string"}
            },
            "required": ["name", "email", "password"]
        },
        "UpdateUserRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "is_premium": {"type": "boolean"},
                "photo_url": {"type": "string"}
            }
        },
        "ChangePasswordRequest": {
            "type": "object",
            "properties": {
                "old_password": {"type": "string"},
                "new_password": {"type": "string"}
            },
            "required": ["old_password", "new_password"]
        },
        "CreateInstitutionRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "absence_limit": {"type": "number"}
            },
            "required": ["name"]
        },
        "UpdateInstitutionRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "absence_limit": {"type": "number"}
            }
        },
        "CreateSubjectRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "required_hours": {"type": "integer"},
                "absence_count": {"type": "integer"},
                "status": {"type": "string"},
                "classes_sunday": {"type": "integer"},
                "classes_monday": {"type": "integer"},
                "classes_tuesday": {"type": "integer"},
                "classes_wednesday": {"type": "integer"},
                "classes_thursday": {"type": "integer"},
                "classes_friday": {"type": "integer"},
                "classes_saturday": {"type": "integer"}
            },
            "required": ["name"]
        },
        "UpdateSubjectRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "required_hours": {"type": "integer"},
                "absence_count": {"type": "integer"},
                "status": {"type": "string"},
                "classes_sunday": {"type": "integer"},
                "classes_monday": {"type": "integer"},
                "classes_tuesday": {"type": "integer"},
                "classes_wednesday": {"type": "integer"},
                "classes_thursday": {"type": "integer"},
                "classes_friday": {"type": "integer"},
                "classes_saturday": {"type": "integer"}
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
