package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"eventhub/internal/jobs"
)

const scriptFamily = "Script"

// RenderCertificate draws an A4 landscape certificate of participation.
// Signature artwork, the script font and the logo are all optional.
func (g *Generator) RenderCertificate(ctx context.Context, cp jobs.CertificatePayload, ev jobs.EventSnapshot) ([]byte, error) {
	if strings.TrimSpace(ev.Title) == "" {
		return nil, &jobs.GenerationError{Document: "certificate", Err: errors.New("event title missing")}
	}

	p := newPage(fpdf.New("L", "mm", "A4", ""))
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	p.AddPage()
	w, h := p.GetPageSize()

	script := g.loadScript(ctx, p)

	g.drawBorder(p, w, h)
	g.drawSeal(p, w-52, 46)

	if logo, ok := g.Assets.Logo(); ok {
		p.image(logo, 24, 22, 30, 0)
	}

	p.SetTextColor(120, 53, 15)
	p.SetFont("Times", "B", 36)
	p.SetXY(0, 34)
	p.CellFormat(w, 14, "CERTIFICATE", "", 1, "C", false, 0, "")
	p.SetFont("Helvetica", "", 12)
	p.SetTextColor(87, 83, 78)
	p.CellFormat(w, 7, "OF PARTICIPATION", "", 1, "C", false, 0, "")

	p.SetY(64)
	p.SetFont("Helvetica", "", 12)
	p.CellFormat(w, 8, "This is to certify that", "", 1, "C", false, 0, "")

	name := orDefault(cp.UserName, placeholderName)
	p.SetTextColor(30, 41, 59)
	if script && scriptable(name) {
		p.SetFont(scriptFamily, "", 40)
		p.CellFormat(w, 20, name, "", 1, "C", false, 0, "")
	} else {
		p.SetFont("Times", "BI", 32)
		p.CellFormat(w, 20, p.tr(name), "", 1, "C", false, 0, "")
	}
	p.SetDrawColor(180, 140, 60)
	p.SetLineWidth(0.4)
	p.Line(w/2-70, p.GetY()+1, w/2+70, p.GetY()+1)

	p.SetY(p.GetY() + 6)
	p.SetTextColor(87, 83, 78)
	p.SetFont("Helvetica", "", 12)
	p.CellFormat(w, 8, "has participated in", "", 1, "C", false, 0, "")

	p.SetTextColor(30, 41, 59)
	p.SetFont("Helvetica", "B", 18)
	p.SetX(40)
	p.MultiCell(w-80, 9, p.tr(ev.Title), "", "C", false)

	p.SetTextColor(87, 83, 78)
	p.SetFont("Helvetica", "", 11)
	held := "held on " + g.formatDay(ev.DateTime)
	if venue := strings.TrimSpace(ev.Venue); venue != "" {
		held += " at " + venue
	}
	p.CellFormat(w, 7, p.tr(held), "", 1, "C", false, 0, "")

	g.drawFooter(p, w, h, script)

	out, err := p.output()
	if err != nil {
		return nil, &jobs.GenerationError{Document: "certificate", Err: err}
	}
	return out, nil
}

// loadScript registers the remote script face. Any failure leaves the
// document usable with the built-in italic faces.
func (g *Generator) loadScript(ctx context.Context, p *page) (ok bool) {
	if g.Fonts == nil {
		return false
	}
	data, err := g.Fonts.Font(ctx)
	if err != nil {
		g.Log.Debug().Err(err).Msg("script font unavailable, using italic")
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			g.Log.Warn().Str("panic", fmt.Sprint(r)).Msg("script font rejected, using italic")
			p.ClearError()
			ok = false
		}
	}()
	p.AddUTF8FontFromBytes(scriptFamily, "", data)
	if p.Err() {
		g.Log.Warn().Err(p.Error()).Msg("script font rejected, using italic")
		p.ClearError()
		return false
	}
	return true
}

// scriptable reports whether s can be written with the UTF-8 script face.
// fpdf's UTF-8 font tables stop at U+FFFF and index past them otherwise.
func scriptable(s string) bool {
	for _, r := range s {
		if r > 0xFFFF {
			return false
		}
	}
	return true
}

func (g *Generator) drawBorder(p *page, w, h float64) {
	p.SetFillColor(255, 251, 235)
	p.Rect(0, 0, w, h, "F")

	p.SetDrawColor(146, 64, 14)
	p.SetLineWidth(1.6)
	p.Rect(8, 8, w-16, h-16, "D")
	p.SetDrawColor(180, 140, 60)
	p.SetLineWidth(0.5)
	p.Rect(12, 12, w-24, h-24, "D")

	p.SetFillColor(180, 140, 60)
	for _, c := range [][2]float64{{12, 12}, {w - 12, 12}, {12, h - 12}, {w - 12, h - 12}} {
		p.Circle(c[0], c[1], 2.2, "F")
	}
}

func (g *Generator) drawSeal(p *page, cx, cy float64) {
	p.SetFillColor(202, 138, 4)
	p.Circle(cx, cy, 17, "F")
	p.SetDrawColor(255, 251, 235)
	p.SetLineWidth(0.6)
	p.Circle(cx, cy, 14, "D")
	p.SetFillColor(234, 179, 8)
	p.Circle(cx, cy, 11, "F")

	p.SetTextColor(120, 53, 15)
	p.SetFont("Helvetica", "B", 7)
	p.SetXY(cx-11, cy-2)
	p.CellFormat(22, 4, "VERIFIED", "", 0, "C", false, 0, "")
}

// drawFooter splits the bottom band into one column per signatory plus a
// final community column.
func (g *Generator) drawFooter(p *page, w, h float64, script bool) {
	left, right := 24.0, w-24
	cols := len(g.Signatories) + 1
	colW := (right - left) / float64(cols)
	lineY := h - 36

	for i, s := range g.Signatories {
		x := left + float64(i)*colW
		inner := colW - 10

		drawn := false
		if img, ok := g.Assets.Signature(s.Slug); ok {
			drawn = p.image(img, x+5+inner/4, lineY-16, inner/2, 0)
		}
		if !drawn {
			p.SetTextColor(30, 41, 59)
			p.SetXY(x+5, lineY-11)
			if script && scriptable(s.Name) {
				p.SetFont(scriptFamily, "", 20)
				p.CellFormat(inner, 10, s.Name, "", 0, "C", false, 0, "")
			} else {
				p.SetFont("Times", "I", 16)
				p.CellFormat(inner, 10, p.tr(s.Name), "", 0, "C", false, 0, "")
			}
		}

		p.SetDrawColor(87, 83, 78)
		p.SetLineWidth(0.3)
		p.Line(x+5, lineY, x+5+inner, lineY)

		p.SetTextColor(30, 41, 59)
		p.SetFont("Helvetica", "B", 10)
		p.SetXY(x+5, lineY+2)
		p.CellFormat(inner, 5, p.tr(s.Name), "", 2, "C", false, 0, "")
		p.SetFont("Helvetica", "", 9)
		p.SetX(x + 5)
		p.CellFormat(inner, 5, p.tr(s.Title), "", 0, "C", false, 0, "")
	}

	x := left + float64(cols-1)*colW
	p.SetTextColor(87, 83, 78)
	p.SetFont("Helvetica", "I", 9)
	p.SetXY(x+5, lineY-6)
	p.MultiCell(colW-10, 5, p.tr(orDefault(g.CommunityText, defaultCommunityText)), "", "C", false)
}
