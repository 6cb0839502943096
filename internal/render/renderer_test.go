package render

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

func sampleDocument() quotes.Document {
	issue := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := quotes.Quote{
		Number:        "QUO-2024-001",
		Version:       2,
		Title:         "Website <redesign>",
		Currency:      "EUR",
		IssueDate:     issue,
		ValidityDays:  30,
		GlobalTaxRate: decimal.NewFromInt(22),
		Terms:         "50% upfront",
		Items: []quotes.LineItem{
			{ID: "a", Description: "Design", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100), DiscountPercent: decimal.NewFromInt(10), TaxRate: decimal.NewFromInt(22)},
			{ID: "b", Description: "Hosting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(20), Optional: true},
		},
	}
	return quotes.Document{
		Quote:  quotes.Recalculate(quotes.DeriveDates(q)),
		Client: quotes.Client{Name: "Acme Srl", Email: "billing@acme.test"},
	}
}

func TestBuildViewFormatsLines(t *testing.T) {
	v := buildView(sampleDocument(), Issuer{Name: "Studio"}, language.English)

	require.Len(t, v.Lines, 2)
	assert.Equal(t, "10%", v.Lines[0].Discount)
	assert.Equal(t, "2", v.Lines[0].Quantity)
	assert.True(t, v.Lines[1].Optional)
	assert.True(t, v.HasOptional)
	assert.Equal(t, "Tax (22%)", v.TaxLabel)
	assert.Equal(t, "31 January 2024", v.ValidUntil)
	assert.Contains(t, v.Total, "244")
}

func TestHTMLEscapesContent(t *testing.T) {
	html, err := renderHTML(buildView(sampleDocument(), Issuer{Name: "Studio"}, language.English))
	require.NoError(t, err)
	assert.Contains(t, html, "Quote QUO-2024-001")
	assert.Contains(t, html, "Revision 2")
	assert.Contains(t, html, "Website &lt;redesign&gt;")
	assert.Contains(t, html, "Hosting (optional)")
	assert.Contains(t, html, "50% upfront")
}

func TestClassicLayoutPostsToGotenberg(t *testing.T) {
	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		file, header, err := r.FormFile("files")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Equal(t, "index.html", header.Filename)
		data, _ := io.ReadAll(file)
		received = string(data)
		assert.Equal(t, "8.27", r.FormValue("paperWidth"))
		_, _ = w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer srv.Close()

	r := New(Config{Issuer: Issuer{Name: "Studio"}}, NewGotenberg(srv.URL+"/", time.Second))
	assert.Equal(t, []string{LayoutClassic, LayoutCompact}, r.Layouts())

	pdf, err := r.RenderPDF(context.Background(), sampleDocument(), "")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 fake", string(pdf))
	assert.Contains(t, received, "QUO-2024-001")
}

func TestGotenbergErrorsCarryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewGotenberg(srv.URL, time.Second).ConvertHTML(context.Background(), "<html></html>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "chromium crashed")
}

func TestCompactLayoutRendersLocally(t *testing.T) {
	r := New(Config{}, nil)
	assert.Equal(t, []string{LayoutCompact}, r.Layouts())

	pdf, err := r.RenderPDF(context.Background(), sampleDocument(), "")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestUnknownLayoutIsValidationError(t *testing.T) {
	r := New(Config{}, nil)
	for _, layout := range []string{"fancy", LayoutClassic} {
		_, err := r.RenderPDF(context.Background(), sampleDocument(), layout)
		var verr *quotes.ValidationError
		require.ErrorAs(t, err, &verr, layout)
		assert.True(t, strings.Contains(verr.Fields["pdf_template_id"], layout))
	}
}
