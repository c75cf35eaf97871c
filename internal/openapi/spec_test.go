package openapi

import "testing"

func TestGenerateSpec(t *testing.T) {
	doc := GenerateSpec("http://localhost:8080", "1.0.0")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI version: got %q", doc.OpenAPI)
	}
	if doc.Info.Version != "1.0.0" {
		t.Errorf("Info version: got %q", doc.Info.Version)
	}

	for _, path := range []string{
		"/healthz", "/getTest", "/setTest",
		"/health/current", "/health/trends",
		"/admin/session", "/admin/credential", "/admin/credential/{keyID}",
		"/admin/role", "/admin/role/reload",
	} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("missing path %s", path)
		}
	}

	if doc.Components.SecuritySchemes["apiKey"] == nil {
		t.Error("missing apiKey security scheme")
	}
	if doc.Components.SecuritySchemes["ownerSession"] == nil {
		t.Error("missing ownerSession security scheme")
	}

	cred := doc.Paths.Find("/admin/credential")
	if cred.Post == nil || cred.Post.Security == nil {
		t.Error("credential creation must require the owner session")
	}
}
