package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/quote.html
var templateFS embed.FS

var quoteTemplate = template.Must(template.ParseFS(templateFS, "templates/quote.html"))

func renderHTML(v quoteView) (string, error) {
	var buf bytes.Buffer
	if err := quoteTemplate.ExecuteTemplate(&buf, "quote.html", v); err != nil {
		return "", fmt.Errorf("render quote html: %w", err)
	}
	return buf.String(), nil
}
