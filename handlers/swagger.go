package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the compliance service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>roadpass-compliance Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "roadpass-compliance", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "parameters": {
      "artifactType": { "name": "type", "in": "path", "required": true, "schema": { "type": "string", "enum": ["identity-front","identity-back","drivers-license-front","drivers-license-back","criminal-record","profile-photo"] } },
      "driverId": { "name": "driverId", "in": "path", "required": true, "schema": { "type": "string" } }
    },
    "schemas": {
      "Artifact": { "type": "object", "properties": {
        "type": {"type":"string"}, "status": {"type":"string","enum":["missing","submitted","verified","rejected"]},
        "storageKey": {"type":"string"}, "mimeType": {"type":"string"}, "originalName": {"type":"string"},
        "sizeBytes": {"type":"integer"}, "revision": {"type":"integer"},
        "submittedAt": {"type":"string","format":"date-time"}, "reviewedAt": {"type":"string","format":"date-time"}, "url": {"type":"string"} } },
      "BankInformation": { "type": "object", "properties": { "accountHolderName": {"type":"string"}, "bankName": {"type":"string"}, "iban": {"type":"string"}, "branchCode": {"type":"string"} } },
      "CompanyInformation": { "type": "object", "properties": { "companyName": {"type":"string"}, "companyType": {"type":"string"}, "taxNumber": {"type":"string"}, "taxOffice": {"type":"string"}, "address": {"type":"string"} } },
      "ComplianceStatus": { "type": "object", "properties": {
        "driverId": {"type":"string"},
        "artifacts": {"type":"array","items":{"$ref":"#/components/schemas/Artifact"}},
        "bank": {"$ref":"#/components/schemas/BankInformation"},
        "company": {"$ref":"#/components/schemas/CompanyInformation"},
        "eligibility": {"type":"object","properties":{"eligible":{"type":"boolean"},"unmetRequirements":{"type":"array","items":{"type":"string"}}}} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/v1/drivers/me/compliance": {
      "get": { "summary": "Compliance status and eligibility of the caller", "responses": { "200": { "description": "status", "content": { "application/json": { "schema": {"$ref":"#/components/schemas/ComplianceStatus"} } } } } }
    },
    "/api/v1/drivers/me/artifacts/{type}": {
      "parameters": [ {"$ref":"#/components/parameters/artifactType"} ],
      "post": {
        "summary": "Submit or replace a document",
        "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"file":{"type":"string","format":"binary"}}} } } },
        "responses": { "201": { "description": "stored", "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Artifact"} } } }, "400": { "description": "invalid upload" }, "409": { "description": "concurrent modification" }, "503": { "description": "storage unavailable, retry" } }
      },
      "delete": { "summary": "Clear a document", "responses": { "204": { "description": "cleared" }, "404": { "description": "not submitted" } } }
    },
    "/api/v1/drivers/me/artifacts/{type}/url": {
      "parameters": [ {"$ref":"#/components/parameters/artifactType"} ],
      "get": { "summary": "Presigned download URL", "responses": { "200": { "description": "url" }, "404": { "description": "not submitted" } } }
    },
    "/api/v1/drivers/me/bank-info": {
      "put": { "summary": "Save bank information", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/BankInformation"} } } }, "responses": { "200": { "description": "saved" }, "400": { "description": "missing required fields" } } },
      "get": { "summary": "Get bank information", "responses": { "200": { "description": "bank information" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete bank information", "responses": { "204": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/api/v1/drivers/me/company-info": {
      "put": { "summary": "Save company information", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/CompanyInformation"} } } }, "responses": { "200": { "description": "saved" }, "400": { "description": "missing required fields" } } },
      "get": { "summary": "Get company information", "responses": { "200": { "description": "company information" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete company information", "responses": { "204": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/api/v1/admin/drivers/{driverId}/compliance": {
      "parameters": [ {"$ref":"#/components/parameters/driverId"} ],
      "get": { "summary": "Reviewer view of a driver's status", "responses": { "200": { "description": "status" }, "403": { "description": "missing reviewer role" } } }
    },
    "/api/v1/admin/drivers/{driverId}/artifacts/{type}/verification": {
      "parameters": [ {"$ref":"#/components/parameters/driverId"}, {"$ref":"#/components/parameters/artifactType"} ],
      "put": {
        "summary": "Record a verification decision",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["verified"],"properties":{"verified":{"type":"boolean"},"revision":{"type":"integer","description":"revision the decision applies to; 0 means current"}}} } } },
        "responses": { "200": { "description": "decision recorded" }, "400": { "description": "type not verifiable" }, "409": { "description": "not submitted or stale revision" } }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
