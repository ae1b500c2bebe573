package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"bizrent_ledger/internal/models"
)

// ReceiptPageProps holds the data rendered on the public receipt page
type ReceiptPageProps struct {
	Receipt     models.Receipt
	DownloadURL string
}

const receiptStyle = `body{font-family:system-ui,sans-serif;max-width:640px;margin:2rem auto;color:#111}` +
	`table{width:100%;border-collapse:collapse}td{padding:.4rem 0;border-bottom:1px solid #eee}` +
	`td.label{color:#555;width:40%}.amount{font-size:1.6rem;font-weight:600}`

// ReceiptPage renders a printable receipt for an approved payment
func ReceiptPage(props ReceiptPageProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		r := props.Receipt
		var b strings.Builder

		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		fmt.Fprintf(&b, `<title>Receipt %s</title>`, templ.EscapeString(r.Number))
		fmt.Fprintf(&b, `<style>%s</style></head><body>`, receiptStyle)

		fmt.Fprintf(&b, `<h1>Payment Receipt</h1><p class="amount">%s</p>`, templ.EscapeString(r.Amount.StringFixed(2)))
		b.WriteString(`<table>`)
		row(&b, "Receipt number", r.Number)
		row(&b, "Issued", r.IssuedAt.UTC().Format("2 January 2006 15:04 MST"))
		if r.Tenant != nil {
			row(&b, "Tenant", r.Tenant.FullName())
		}
		if inv := r.Invoice; inv != nil {
			row(&b, "Invoice", fmt.Sprintf("#%d", inv.ID))
			if inv.Description != "" {
				row(&b, "Description", inv.Description)
			}
			if unit := inv.Unit; unit != nil {
				location := "Unit " + unit.UnitNumber
				if unit.Property != nil {
					location = unit.Property.Name + ", " + location
				}
				row(&b, "Unit", location)
			}
		}
		if p := r.Payment; p != nil {
			row(&b, "Transaction ID", p.TransactionID)
			if p.ProcessedAt != nil {
				row(&b, "Approved", p.ProcessedAt.UTC().Format("2 January 2006"))
			}
		}
		b.WriteString(`</table>`)

		if props.DownloadURL != "" {
			fmt.Fprintf(&b, `<p><a href="%s">Permanent link to this receipt</a></p>`, templ.EscapeString(props.DownloadURL))
		}
		b.WriteString(`</body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, `<tr><td class="label">%s</td><td>%s</td></tr>`, templ.EscapeString(label), templ.EscapeString(value))
}
