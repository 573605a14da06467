// Package pdf renders event tickets and participation certificates.
package pdf

import (
	"bytes"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
)

const (
	placeholderDate  = "Date TBA"
	placeholderVenue = "Venue TBD"
	placeholderName  = "Guest"

	defaultCommunityText = "Issued on behalf of the eventhub community"
)

// Signatory is one footer block on a certificate. Slug selects the
// signature artwork in the assets directory.
type Signatory struct {
	Name  string
	Title string
	Slug  string
}

// ParseSignatories reads "Name|Title;Name|Title". The slug is derived from
// the name.
func ParseSignatories(s string) []Signatory {
	var out []Signatory
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, title, _ := strings.Cut(part, "|")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, Signatory{Name: name, Title: strings.TrimSpace(title), Slug: Slug(name)})
	}
	return out
}

// Generator holds everything the documents need apart from the job payload.
// The zero value renders with no artwork, no remote font and UTC times.
type Generator struct {
	Assets        Assets
	Fonts         FontSource
	Location      *time.Location
	Signatories   []Signatory
	CommunityText string
	Log           zerolog.Logger
}

func (g *Generator) location() *time.Location {
	if g.Location == nil {
		return time.UTC
	}
	return g.Location
}

// FormatWhen renders an RFC3339 timestamp for print, or the placeholder.
func (g *Generator) FormatWhen(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if raw == "" || err != nil {
		return placeholderDate
	}
	return t.In(g.location()).Format("Monday, 02 Jan 2006 at 03:04 PM MST")
}

func (g *Generator) formatDay(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if raw == "" || err != nil {
		return placeholderDate
	}
	return t.In(g.location()).Format("02 January 2006")
}

// page wraps a document with the cp1252 translator the core fonts need.
type page struct {
	*fpdf.Fpdf
	tr func(string) string
}

func newPage(pdf *fpdf.Fpdf) *page {
	return &page{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

// image places img inside the box, skipping it if fpdf cannot decode it.
func (p *page) image(img Image, x, y, w, h float64) bool {
	opts := fpdf.ImageOptions{ImageType: img.Type, ReadDpi: true}
	p.RegisterImageOptionsReader(img.Name, opts, bytes.NewReader(img.Data))
	if p.Err() {
		p.ClearError()
		return false
	}
	p.ImageOptions(img.Name, x, y, w, h, false, opts, 0, "")
	return true
}

func (p *page) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
