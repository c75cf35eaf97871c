// Package openapi generates the OpenAPI 3.1 document describing the
// gateway surface. The document is static apart from the server URL; it is
// served unauthenticated at /openapi.json.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// GenerateSpec builds the OpenAPI document for the gateway.
func GenerateSpec(baseURL, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Senechal API",
			Description: "Personal data API gateway with role-based access control and temporary credentials.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{
		"apiKey": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type: "apiKey",
				In:   "header",
				Name: "X-API-Key",
			},
		},
		"ownerSession": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
			},
		},
	}
	doc.Components = &components

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: objectSchema(map[string]*openapi3.SchemaRef{
			"error": {Value: objectSchema(map[string]*openapi3.SchemaRef{
				"code":    typedSchema("integer"),
				"message": typedSchema("string"),
			})},
		}),
	}
	doc.Components.Schemas["CredentialMetadata"] = &openapi3.SchemaRef{
		Value: objectSchema(map[string]*openapi3.SchemaRef{
			"key_id":     typedSchema("string"),
			"role":       typedSchema("string"),
			"note":       typedSchema("string"),
			"active":     typedSchema("boolean"),
			"created_at": dateTimeSchema(),
			"expires_at": dateTimeSchema(),
			"revoked_at": dateTimeSchema(),
		}),
	}
	doc.Components.Schemas["IssuedCredential"] = &openapi3.SchemaRef{
		Value: objectSchema(map[string]*openapi3.SchemaRef{
			"key_id":     typedSchema("string"),
			"raw_secret": typedSchema("string"),
			"role":       typedSchema("string"),
			"note":       typedSchema("string"),
			"expires_at": dateTimeSchema(),
		}),
	}

	doc.Paths = openapi3.NewPaths()

	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: operation("Liveness probe", "healthz", nil),
	})
	doc.Paths.Set("/readyz", &openapi3.PathItem{
		Get: operation("Readiness probe (credential store reachable)", "readyz", nil),
	})

	apiKeySec := openapi3.SecurityRequirements{{"apiKey": {}}}
	ownerSec := openapi3.SecurityRequirements{{"ownerSession": {}}}

	doc.Paths.Set("/getTest", &openapi3.PathItem{
		Get: operation("Read the test file", "getTest", apiKeySec),
	})
	doc.Paths.Set("/setTest", &openapi3.PathItem{
		Post: operation("Write the test file", "setTest", apiKeySec),
	})
	doc.Paths.Set("/health/current", &openapi3.PathItem{
		Get: operation("Latest health measurements", "healthCurrent", apiKeySec),
	})
	doc.Paths.Set("/health/trends", &openapi3.PathItem{
		Get: operation("Aggregated health measurement trends", "healthTrends", apiKeySec),
	})

	doc.Paths.Set("/admin/session", &openapi3.PathItem{
		Post: operation("Owner login; returns a session token", "ownerLogin", nil),
	})
	doc.Paths.Set("/admin/credential", &openapi3.PathItem{
		Get:  operation("List temporary credentials", "listCredentials", ownerSec),
		Post: operation("Issue a temporary credential (secret shown once)", "createCredential", ownerSec),
	})
	doc.Paths.Set("/admin/credential/{keyID}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{
			{Value: &openapi3.Parameter{
				Name:     "keyID",
				In:       "path",
				Required: true,
				Schema:   typedSchema("string"),
			}},
		},
		Get:    operation("Get credential metadata", "getCredential", ownerSec),
		Delete: operation("Revoke a credential", "revokeCredential", ownerSec),
	})
	doc.Paths.Set("/admin/role", &openapi3.PathItem{
		Get: operation("List configured roles and their path grants", "listRoles", ownerSec),
	})
	doc.Paths.Set("/admin/role/reload", &openapi3.PathItem{
		Post: operation("Reload the role configuration file", "reloadRoles", ownerSec),
	})

	return doc
}

func operation(summary, id string, security openapi3.SecurityRequirements) *openapi3.Operation {
	desc := "Successful response"
	op := &openapi3.Operation{
		Summary:     summary,
		OperationID: id,
		Responses:   openapi3.NewResponses(),
	}
	op.Responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{Description: &desc},
	})
	if security != nil {
		op.Security = &security
	}
	return op
}

func objectSchema(props map[string]*openapi3.SchemaRef) *openapi3.Schema {
	s := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: openapi3.Schemas{},
	}
	for name, ref := range props {
		s.Properties[name] = ref
	}
	return s
}

func typedSchema(t string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{t}}}
}

func dateTimeSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
}
