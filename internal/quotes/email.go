package quotes

import (
	"fmt"
	"strings"
)

// PDFFilename names the attachment for a quote revision.
func PDFFilename(q Quote) string {
	return fmt.Sprintf("%s-v%d.pdf", q.Number, q.Version)
}

// ComposeEmail packages the recipients, subject, body and PDF attachment for a
// quote. A non-empty link is appended so the client can accept or reject.
func ComposeEmail(q Quote, client Client, req EmailRequest, link string, pdf []byte) Email {
	to := req.To
	if len(to) == 0 && client.Email != "" {
		to = []string{client.Email}
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = fmt.Sprintf("Quote %s", q.Number)
		if q.Title != "" {
			subject += ": " + q.Title
		}
	}

	var body strings.Builder
	if msg := strings.TrimSpace(req.Message); msg != "" {
		body.WriteString(msg)
		body.WriteString("\n\n")
	} else {
		name := client.Name
		if name == "" {
			name = "there"
		}
		fmt.Fprintf(&body, "Hello %s,\n\nplease find attached quote %s.\n\n", name, q.Number)
	}
	fmt.Fprintf(&body, "Total: %s %s\n", q.Totals.TotalAmount.StringFixed(CurrencyScale(q.Currency)), q.Currency)
	if !q.ExpiryDate.IsZero() {
		fmt.Fprintf(&body, "Valid until: %s\n", q.ExpiryDate.Format(DateLayout))
	}
	if link != "" {
		fmt.Fprintf(&body, "\nAccept or decline online: %s\n", link)
	}

	email := Email{To: to, Subject: subject, Body: body.String()}
	if len(pdf) > 0 {
		email.Attachments = []Attachment{{
			Filename:    PDFFilename(q),
			ContentType: "application/pdf",
			Data:        pdf,
		}}
	}
	return email
}
