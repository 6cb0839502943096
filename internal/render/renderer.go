package render

import (
	"context"
	"fmt"

	"golang.org/x/text/language"

	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

// Layout names accepted by RenderPDF.
const (
	LayoutClassic = "classic"
	LayoutCompact = "compact"
)

// Config tunes the renderer.
type Config struct {
	Issuer        Issuer
	DefaultLayout string
	Locale        string
}

// Renderer produces quote PDFs. The classic layout is HTML converted by
// Gotenberg; the compact layout is drawn in-process.
type Renderer struct {
	gotenberg *Gotenberg
	issuer    Issuer
	layout    string
	tag       language.Tag
}

var _ quotes.Renderer = (*Renderer)(nil)

// New constructs a renderer. gotenberg may be nil, in which case only the
// compact layout is offered.
func New(cfg Config, gotenberg *Gotenberg) *Renderer {
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.English
	}
	r := &Renderer{gotenberg: gotenberg, issuer: cfg.Issuer, layout: cfg.DefaultLayout, tag: tag}
	if r.layout == "" || (r.layout == LayoutClassic && gotenberg == nil) {
		r.layout = r.Layouts()[0]
	}
	return r
}

// Layouts lists the layouts this renderer can produce.
func (r *Renderer) Layouts() []string {
	if r.gotenberg == nil {
		return []string{LayoutCompact}
	}
	return []string{LayoutClassic, LayoutCompact}
}

// RenderPDF lays out doc with the named layout, or the default when empty.
func (r *Renderer) RenderPDF(ctx context.Context, doc quotes.Document, layout string) ([]byte, error) {
	if layout == "" {
		layout = r.layout
	}
	v := buildView(doc, r.issuer, r.tag)
	switch layout {
	case LayoutClassic:
		if r.gotenberg == nil {
			break
		}
		html, err := renderHTML(v)
		if err != nil {
			return nil, err
		}
		return r.gotenberg.ConvertHTML(ctx, html)
	case LayoutCompact:
		pdf, err := renderCompact(v)
		if err != nil {
			return nil, fmt.Errorf("render compact pdf: %w", err)
		}
		return pdf, nil
	}
	return nil, &quotes.ValidationError{Fields: quotes.FieldErrors{
		"pdf_template_id": fmt.Sprintf("unknown layout %q", layout),
	}}
}
