package api

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"html/template"
	"net/http"

	"opsdemo/internal/models"
)

const openAPIPath = "/api/v1/openapi.yaml"

//go:embed openapi/openapi.yaml
var openAPISpec []byte

// openAPIETag is a strong validator for the embedded document.
var openAPIETag = func() string {
	sum := sha256.Sum256(openAPISpec)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

// ServeOpenAPISpec serves the embedded OpenAPI document. Clients that send
// the current ETag get 304.
func (h *Handlers) ServeOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", openAPIETag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == openAPIETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

// Every documented route is a GET, so "Try it out" is limited to it.
var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>opsdemo {{.Version}} · API docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.17.14/swagger-ui.css">
</head>
<body>
  <div id="docs"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5.17.14/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: {{.SpecURL}},
      dom_id: '#docs',
      supportedSubmitMethods: ['get'],
      tryItOutEnabled: true,
      defaultModelsExpandDepth: 0,
      displayRequestDuration: true
    });
  </script>
</body>
</html>
`))

type docsPageData struct {
	Version string
	SpecURL string
}

// ServeSwaggerUI renders the interactive docs for the running build.
func (h *Handlers) ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	version := h.version.Version
	if version == "" {
		version = "dev"
	}

	var buf bytes.Buffer
	data := docsPageData{Version: version, SpecURL: openAPIPath + "?v=" + version}
	if err := docsPage.Execute(&buf, data); err != nil {
		h.logger.Error("Failed to render docs page", "error", err)
		writeError(w, r, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to render docs")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
