// Package pdf renders the printable devis and facture documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/atelier-btp/atelier-btp/internal/clients"
	"github.com/atelier-btp/atelier-btp/internal/invoices"
	"github.com/atelier-btp/atelier-btp/internal/quotes"
	"github.com/atelier-btp/atelier-btp/internal/totals"
)

// CompanyInfo is the letterhead block printed on every document.
type CompanyInfo struct {
	Name    string
	Address string
	Phone   string
	Email   string
	SIRET   string
}

type Renderer struct {
	company    CompanyInfo
	clientRepo clients.Repository
}

func NewRenderer(company CompanyInfo, clientRepo clients.Repository) *Renderer {
	return &Renderer{company: company, clientRepo: clientRepo}
}

func (r *Renderer) RenderDevis(ctx context.Context, d *quotes.Devis) ([]byte, error) {
	doc := newDocument()
	doc.header("DEVIS", d.Reference, d.DevisDate, r.company)
	doc.line(fmt.Sprintf("Valable jusqu'au %s", d.ValidUntil.Format("02/01/2006")))
	r.clientBlock(ctx, doc, d.ClientID)

	for _, section := range d.Sections {
		doc.sectionTitle(section.Title)
		doc.tableHeader()
		for _, l := range section.Lines {
			doc.tableRow(l.Description, l.Unit, l.Quantity, l.UnitPrice, l.TaxRate, l.Billable)
			for _, m := range l.Materials {
				doc.tableRow("  "+m.Label, m.Unit, m.Quantity, m.UnitPrice, m.TaxRate, m.Billable)
			}
		}
	}

	doc.summary(totals.Compute(quotes.TotalsSections(d)))
	if d.Notes != nil && *d.Notes != "" {
		doc.notes(*d.Notes)
	}
	return doc.output()
}

func (r *Renderer) RenderFacture(ctx context.Context, f *invoices.Facture) ([]byte, error) {
	doc := newDocument()
	doc.header("FACTURE", f.Reference, f.FactureDate, r.company)
	doc.line(fmt.Sprintf("Echeance le %s", f.DueDate.Format("02/01/2006")))
	r.clientBlock(ctx, doc, f.ClientID)

	doc.tableHeader()
	for _, l := range f.Lines {
		doc.tableRow(l.Label, l.Unit, l.Quantity, l.UnitPrice, l.TaxRate, l.Billable)
		for _, m := range l.Materials {
			doc.tableRow("  "+m.Label, m.Unit, m.Quantity, m.UnitPrice, m.TaxRate, m.Billable)
		}
	}

	doc.summary(totals.Compute(invoices.TotalsSections(f)))
	if f.RetenueRate > 0 {
		doc.amountLine(fmt.Sprintf("Retenue de garantie (%.1f%%)", f.RetenueRate), -f.RetenueAmount)
		doc.amountLineBold("Net a payer", f.NetToPay)
	}
	if f.Notes != nil && *f.Notes != "" {
		doc.notes(*f.Notes)
	}
	return doc.output()
}

func (r *Renderer) clientBlock(ctx context.Context, doc *document, clientID int64) {
	client, err := r.clientRepo.Get(ctx, clientID)
	if err != nil {
		return
	}
	doc.pdf.Ln(2)
	doc.boldLine(client.Name)
	if client.AddressLine != nil {
		doc.line(*client.AddressLine)
	}
	if client.PostalCode != nil || client.City != nil {
		doc.line(deref(client.PostalCode) + " " + deref(client.City))
	}
	if client.Email != nil {
		doc.line(*client.Email)
	}
}

// document wraps the pdf builder with the house layout.
type document struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newDocument() *document {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	return &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) header(kind, reference string, date time.Time, company CompanyInfo) {
	d.pdf.SetFont("Helvetica", "B", 16)
	d.pdf.Cell(0, 10, d.tr(fmt.Sprintf("%s %s", kind, reference)))
	d.pdf.Ln(8)

	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.Cell(0, 5, d.tr(fmt.Sprintf("Date : %s", date.Format("02/01/2006"))))
	d.pdf.Ln(5)

	if company.Name != "" {
		d.pdf.SetFont("Helvetica", "B", 10)
		d.pdf.Cell(0, 5, d.tr(company.Name))
		d.pdf.Ln(5)
		d.pdf.SetFont("Helvetica", "", 9)
		for _, part := range []string{company.Address, company.Phone, company.Email} {
			if part != "" {
				d.pdf.Cell(0, 4, d.tr(part))
				d.pdf.Ln(4)
			}
		}
		if company.SIRET != "" {
			d.pdf.Cell(0, 4, d.tr("SIRET "+company.SIRET))
			d.pdf.Ln(4)
		}
	}
	d.pdf.SetFont("Helvetica", "", 10)
}

func (d *document) line(text string) {
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.Cell(0, 5, d.tr(text))
	d.pdf.Ln(5)
}

func (d *document) boldLine(text string) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.Cell(0, 5, d.tr(text))
	d.pdf.Ln(5)
}

func (d *document) sectionTitle(title string) {
	d.pdf.Ln(3)
	d.pdf.SetFont("Helvetica", "B", 11)
	d.pdf.Cell(0, 7, d.tr(title))
	d.pdf.Ln(7)
}

func (d *document) tableHeader() {
	d.pdf.SetFont("Helvetica", "B", 9)
	d.pdf.Cell(80, 6, d.tr("Designation"))
	d.pdf.Cell(15, 6, d.tr("Unite"))
	d.pdf.Cell(20, 6, d.tr("Qte"))
	d.pdf.Cell(25, 6, "P.U. HT")
	d.pdf.Cell(15, 6, "TVA")
	d.pdf.Cell(25, 6, "Total HT")
	d.pdf.Ln(6)
	d.pdf.SetFont("Helvetica", "", 9)
}

func (d *document) tableRow(label, unit string, qty, unitPrice, taxRate float64, billable *bool) {
	lineTotal := qty * unitPrice
	suffix := ""
	if billable != nil && !*billable {
		suffix = " (non facturable)"
		lineTotal = 0
	}
	d.pdf.Cell(80, 5, d.tr(trim(label+suffix, 52)))
	d.pdf.Cell(15, 5, d.tr(unit))
	d.pdf.Cell(20, 5, fmt.Sprintf("%.2f", qty))
	d.pdf.Cell(25, 5, fmt.Sprintf("%.2f", unitPrice))
	d.pdf.Cell(15, 5, fmt.Sprintf("%.1f%%", taxRate))
	d.pdf.Cell(25, 5, fmt.Sprintf("%.2f", totals.Round2(lineTotal)))
	d.pdf.Ln(5)
}

func (d *document) summary(res totals.Result) {
	d.pdf.Ln(4)

	rates := make([]float64, 0, len(res.ByRate))
	for rate := range res.ByRate {
		rates = append(rates, rate)
	}
	sort.Float64s(rates)

	d.pdf.SetFont("Helvetica", "", 9)
	for _, rate := range rates {
		rt := res.ByRate[rate]
		d.pdf.Cell(0, 5, d.tr(fmt.Sprintf("TVA %.1f%% sur %.2f : %.2f", rate, totals.Round2(rt.Base), totals.Round2(rt.Tax))))
		d.pdf.Ln(5)
	}

	d.amountLine("Total HT", totals.Round2(res.TotalHT))
	d.amountLine("Total TVA", totals.Round2(res.TotalTVA))
	d.amountLineBold("Total TTC", totals.Round2(res.TotalTTC))
}

func (d *document) amountLine(label string, amount float64) {
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.Cell(0, 6, d.tr(fmt.Sprintf("%s : %.2f EUR", label, amount)))
	d.pdf.Ln(6)
}

func (d *document) amountLineBold(label string, amount float64) {
	d.pdf.SetFont("Helvetica", "B", 11)
	d.pdf.Cell(0, 7, d.tr(fmt.Sprintf("%s : %.2f EUR", label, amount)))
	d.pdf.Ln(7)
}

func (d *document) notes(text string) {
	d.pdf.Ln(3)
	d.pdf.SetFont("Helvetica", "I", 9)
	d.pdf.MultiCell(0, 4, d.tr(text), "", "L", false)
}

func (d *document) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func trim(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "..."
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
