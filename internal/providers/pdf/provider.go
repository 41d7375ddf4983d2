// Package pdf renders invoices and receipts with maroto.
package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// Provider takes preformatted document data; amounts arrive as display strings.
type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error)
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

// Party is the customer block printed on documents.
type Party struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func render(ctx context.Context, m core.Maroto) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

func addHeader(m core.Maroto, title, business string) {
	m.AddRow(20,
		text.NewCol(6, title, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(6, business, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)
}

func addParty(m core.Maroto, label string, p Party) {
	m.AddRow(30,
		col.New(6).Add(
			text.New(label, props.Text{Style: fontstyle.Bold}),
			text.New(p.Name, props.Text{Top: 5}),
			text.New(p.Phone, props.Text{Top: 10}),
			text.New(p.Email, props.Text{Top: 15}),
			text.New(p.Address, props.Text{Top: 20}),
		),
		col.New(6),
	)
}

// addHeadline prints the large amount line under the party block.
func addHeadline(m core.Maroto, line string) {
	m.AddRow(15,
		text.NewCol(12, line, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)
}

func addTotal(m core.Maroto, label, value string) {
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, label, props.Text{Size: 9}),
		text.NewCol(2, value, props.Text{Size: 9, Align: align.Right}),
	)
}
