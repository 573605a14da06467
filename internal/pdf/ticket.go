package pdf

import (
	"bytes"
	"errors"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"

	"eventhub/internal/jobs"
)

// RenderTicket draws a 210x100 mm landscape admission card. Only the event
// title and the token are required; everything else falls back to
// placeholder text.
func (g *Generator) RenderTicket(reg jobs.RegistrationPayload, ev jobs.EventSnapshot) ([]byte, error) {
	if strings.TrimSpace(ev.Title) == "" {
		return nil, &jobs.GenerationError{Document: "ticket", Err: errors.New("event title missing")}
	}
	token := strings.TrimSpace(reg.TokenID)
	if token == "" {
		return nil, &jobs.GenerationError{Document: "ticket", Err: errors.New("token missing")}
	}

	qr, err := qrcode.Encode(token, qrcode.Medium, 256)
	if err != nil {
		return nil, &jobs.GenerationError{Document: "ticket", Err: err}
	}

	p := newPage(fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 100, Ht: 210},
	}))
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	p.AddPage()
	w, h := p.GetPageSize()

	// Left band.
	p.SetFillColor(30, 41, 59)
	p.Rect(0, 0, 62, h, "F")
	p.SetDrawColor(148, 163, 184)
	p.SetLineWidth(0.3)
	p.SetDashPattern([]float64{1.5, 1.5}, 0)
	p.Line(62, 6, 62, h-6)
	p.SetDashPattern([]float64{}, 0)

	if logo, ok := g.Assets.Logo(); ok {
		p.image(logo, 8, 8, 22, 0)
	}

	p.SetTextColor(255, 255, 255)
	p.SetFont("Helvetica", "B", 9)
	p.SetXY(8, 34)
	p.CellFormat(46, 5, "ADMIT ONE", "", 1, "L", false, 0, "")
	p.SetFont("Helvetica", "", 7)
	p.SetXY(8, 40)
	p.CellFormat(46, 4, p.tr("Scan at the entrance"), "", 1, "L", false, 0, "")

	p.RegisterImageOptionsReader("ticket-qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	p.ImageOptions("ticket-qr", 10, 50, 40, 40, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	// Right side: event details.
	x := 70.0
	cw := w - x - 10

	p.SetTextColor(30, 41, 59)
	p.SetFont("Helvetica", "B", 20)
	p.SetXY(x, 12)
	p.MultiCell(cw, 9, p.tr(ev.Title), "", "L", false)

	p.SetTextColor(71, 85, 105)
	row := func(label, value string) {
		p.SetX(x)
		p.SetFont("Helvetica", "B", 8)
		p.CellFormat(22, 7, label, "", 0, "L", false, 0, "")
		p.SetFont("Helvetica", "", 10)
		p.MultiCell(cw-22, 7, p.tr(value), "", "L", false)
	}
	p.SetY(p.GetY() + 4)
	row("WHEN", g.FormatWhen(ev.DateTime))
	row("WHERE", orDefault(ev.Venue, placeholderVenue))
	row("ATTENDEE", orDefault(reg.UserName, placeholderName))
	if phone := strings.TrimSpace(reg.UserPhone); phone != "" {
		row("PHONE", phone)
	}

	p.SetFont("Courier", "B", 9)
	p.SetTextColor(100, 116, 139)
	p.SetXY(x, h-16)
	p.CellFormat(cw, 6, "TOKEN "+p.tr(token), "", 0, "L", false, 0, "")

	out, err := p.output()
	if err != nil {
		return nil, &jobs.GenerationError{Document: "ticket", Err: err}
	}
	return out, nil
}
