package render

import (
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// renderCompact draws the quote locally without a browser.
func renderCompact(v quoteView) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	small := props.Text{Size: 9}
	smallRight := props.Text{Size: 9, Align: align.Right}
	bold := props.Text{Size: 9, Style: fontstyle.Bold}
	boldRight := props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}

	m.AddRow(12,
		text.NewCol(8, "Quote "+v.Number, props.Text{Size: 18, Style: fontstyle.Bold}),
		text.NewCol(4, "Issued "+v.IssueDate, props.Text{Size: 9, Align: align.Right, Top: 3}),
	)
	m.AddRow(8,
		text.NewCol(8, v.Title, props.Text{Size: 11}),
		text.NewCol(4, "Valid until "+v.ValidUntil, smallRight),
	)
	m.AddRow(24,
		col.New(6).Add(
			text.New(v.Issuer.Name, bold),
			text.New(v.Issuer.Address, props.Text{Size: 9, Top: 5}),
			text.New(v.Issuer.Email, props.Text{Size: 9, Top: 15}),
		),
		col.New(6).Add(
			text.New("Prepared for", bold),
			text.New(v.Client.Name, props.Text{Size: 9, Top: 5}),
			text.New(v.Client.Address, props.Text{Size: 9, Top: 10}),
			text.New(v.Client.Email, props.Text{Size: 9, Top: 15}),
		),
	)
	if v.Description != "" {
		m.AddRow(12, text.NewCol(12, v.Description, small))
	}

	m.AddRow(8,
		text.NewCol(5, "Description", bold),
		text.NewCol(1, "Qty", boldRight),
		text.NewCol(2, "Unit price", boldRight),
		text.NewCol(2, "Discount", boldRight),
		text.NewCol(2, "Amount", boldRight),
	)
	for _, line := range v.Lines {
		desc := line.Description
		if line.Optional {
			desc += " (optional)"
		}
		m.AddRow(8,
			text.NewCol(5, desc, small),
			text.NewCol(1, line.Quantity, smallRight),
			text.NewCol(2, line.UnitPrice, smallRight),
			text.NewCol(2, line.Discount, smallRight),
			text.NewCol(2, line.Amount, smallRight),
		)
	}

	m.AddRow(8, col.New(8), text.NewCol(2, "Subtotal", small), text.NewCol(2, v.Subtotal, smallRight))
	if v.HasDiscount {
		m.AddRow(8, col.New(8), text.NewCol(2, "Discount", small), text.NewCol(2, "-"+v.GlobalDiscount, smallRight))
	}
	m.AddRow(8, col.New(8), text.NewCol(2, v.TaxLabel, small), text.NewCol(2, v.Tax, smallRight))
	m.AddRow(10, col.New(8), text.NewCol(2, "Total", bold), text.NewCol(2, v.Total, boldRight))

	for _, section := range []struct{ title, body string }{
		{"Payment terms", v.PaymentTerms},
		{"Terms and conditions", v.Terms},
		{"Notes", v.Notes},
	} {
		if section.body == "" {
			continue
		}
		m.AddRow(6, text.NewCol(12, section.title, bold))
		m.AddRow(14, text.NewCol(12, section.body, small))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
