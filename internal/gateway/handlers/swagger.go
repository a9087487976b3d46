package handlers

import (
	"os"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// API Docs
// ============================================================

type Docs struct {
	specPath string
}

func NewDocs(specPath string) *Docs {
	return &Docs{specPath: specPath}
}

// Spec serves the OpenAPI document.
func (d *Docs) Spec(c fiber.Ctx) error {
	data, err := os.ReadFile(d.specPath)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "api description not found"})
	}
	c.Type("yaml")
	return c.Send(data)
}

// UI serves a Swagger UI page reading the document from /docs/openapi.yaml.
func (d *Docs) UI(c fiber.Ctx) error {
	c.Type("html")
	return c.SendString(swaggerPage)
}

const swaggerPage = `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>Palitra API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
<script>
  window.onload = () => {
    window.ui = SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
    });
  };
</script>
</body>
</html>`
