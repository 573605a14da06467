// Package mail renders notification emails and hands them to a transport.
package mail

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"eventhub/internal/jobs"
)

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
}

var tmpl = template.Must(template.New("mail").Parse(`
{{define "header"}}<!doctype html>
<html><body style="margin:0;padding:24px;background:#f8fafc;font-family:Helvetica,Arial,sans-serif;color:#1e293b">
<table role="presentation" width="100%" style="max-width:560px;margin:0 auto;background:#ffffff;border-radius:8px;padding:24px">
<tr><td>{{end}}

{{define "footer"}}<p style="margin-top:32px;font-size:12px;color:#64748b">You are receiving this because you have an account or a registration with us.</p>
</td></tr></table></body></html>{{end}}

{{define "details"}}<table role="presentation" style="margin:16px 0;font-size:14px">
<tr><td style="padding:4px 12px 4px 0;color:#64748b">When</td><td>{{.When}}</td></tr>
<tr><td style="padding:4px 12px 4px 0;color:#64748b">Where</td><td>{{.Venue}}</td></tr>
</table>{{end}}

{{define "registration"}}{{template "header" .}}
<h2 style="margin-top:0">You're registered for {{.Title}}</h2>
<p>Hi {{.Name}},</p>
<p>Thanks for registering. Your ticket is attached to this email.</p>
{{template "details" .}}
<p style="font-size:14px">Ticket token: <code style="font-size:15px">{{.Token}}</code></p>
{{if .Link}}<p><a href="{{.Link}}" style="display:inline-block;padding:10px 18px;background:#1e293b;color:#ffffff;border-radius:6px;text-decoration:none">View ticket</a></p>{{end}}
{{template "footer" .}}{{end}}

{{define "new_event"}}{{template "header" .}}
<h2 style="margin-top:0">New event: {{.Title}}</h2>
<p>Hi {{.Name}},</p>
{{if .Description}}<p>{{.Description}}</p>{{end}}
{{template "details" .}}
{{if .Link}}<p><a href="{{.Link}}">See the event and register</a></p>{{end}}
{{template "footer" .}}{{end}}

{{define "external_alert"}}{{template "header" .}}
<h2 style="margin-top:0">Don't miss {{.Title}}</h2>
<p>Hi {{.Name}},</p>
<p>We thought you might like this event from our partners.</p>
{{if .Description}}<p>{{.Description}}</p>{{end}}
{{template "details" .}}
{{if .Link}}<p><a href="{{.Link}}">Learn more</a></p>{{end}}
{{template "footer" .}}{{end}}

{{define "certificate"}}{{template "header" .}}
<h2 style="margin-top:0">Your certificate for {{.Title}}</h2>
<p>Hi {{.Name}},</p>
<p>Thank you for attending. Your certificate of participation is attached.</p>
{{template "footer" .}}{{end}}

{{define "reminder"}}{{template "header" .}}
<h2 style="margin-top:0">{{.Title}} is tomorrow</h2>
<p>Hi {{.Name}},</p>
<p>A quick reminder about the event you registered for.</p>
{{template "details" .}}
{{if .Token}}<p style="font-size:14px">Bring your ticket token: <code>{{.Token}}</code></p>{{end}}
{{template "footer" .}}{{end}}
`))

type view struct {
	Name        string
	Title       string
	When        string
	Venue       string
	Description string
	Token       string
	Link        string
}

// Renderer turns job payloads into messages. Times are printed in Location.
type Renderer struct {
	Location *time.Location
}

// Render is Renderer{Location: loc}.Render(job).
func Render(job *jobs.Job, loc *time.Location) (Message, error) {
	return Renderer{Location: loc}.Render(job)
}

// Render produces the subject and body of an email job. Content set on the
// job by the producer wins over the templates.
func (r Renderer) Render(job *jobs.Job) (Message, error) {
	if job.HasExplicitContent() {
		return Message{Subject: job.Subject, HTML: job.HTML}, nil
	}

	switch job.Kind {
	case jobs.KindRegistration:
		var p jobs.RegistrationPayload
		if err := job.Decode(&p); err != nil {
			return Message{}, &jobs.RenderError{Kind: job.Kind, Err: err}
		}
		v := r.eventView(p.UserName, p.Event)
		v.Token = p.TokenID
		v.Link = p.TicketLink
		return r.execute(job.Kind, "registration", "Your ticket for "+v.Title, v)

	case jobs.KindNewEvent:
		var p jobs.NewEventPayload
		if err := job.Decode(&p); err != nil {
			return Message{}, &jobs.RenderError{Kind: job.Kind, Err: err}
		}
		v := r.eventView(p.UserName, p.Event)
		v.Link = firstNonEmpty(p.EventLink, p.Event.Link)
		return r.execute(job.Kind, "new_event", "New event: "+v.Title, v)

	case jobs.KindExternalEventAlert:
		var p jobs.ExternalEventAlertPayload
		if err := job.Decode(&p); err != nil {
			return Message{}, &jobs.RenderError{Kind: job.Kind, Err: err}
		}
		v := r.eventView(p.UserName, p.Event)
		v.Link = firstNonEmpty(p.ExternalLink, p.Event.Link)
		return r.execute(job.Kind, "external_alert", "Don't miss: "+v.Title, v)
	}

	return Message{}, &jobs.RenderError{Kind: job.Kind, Err: fmt.Errorf("no template for kind %q", job.Kind)}
}

// RenderCertificate is the cover mail that carries a certificate PDF.
func (r Renderer) RenderCertificate(p jobs.CertificatePayload) (Message, error) {
	v := r.eventView(p.UserName, p.Event)
	return r.execute(jobs.KindCertificate, "certificate", "Your certificate for "+v.Title, v)
}

// Reminder is what the daily reminder needs to know about one registrant.
type Reminder struct {
	UserName string
	Event    jobs.EventSnapshot
	TokenID  string
}

func (r Renderer) RenderReminder(rem Reminder) (Message, error) {
	v := r.eventView(rem.UserName, rem.Event)
	v.Token = rem.TokenID
	return r.execute("REMINDER", "reminder", "Reminder: "+v.Title+" is tomorrow", v)
}

func (r Renderer) eventView(name string, ev jobs.EventSnapshot) view {
	return view{
		Name:        firstNonEmpty(name, "there"),
		Title:       strings.TrimSpace(ev.Title),
		When:        r.formatWhen(ev.DateTime),
		Venue:       firstNonEmpty(ev.Venue, "Venue TBD"),
		Description: ev.Description,
	}
}

func (r Renderer) execute(kind jobs.Kind, name, subject string, v view) (Message, error) {
	if v.Title == "" {
		return Message{}, &jobs.RenderError{Kind: kind, Err: errors.New("event title missing")}
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, v); err != nil {
		return Message{}, &jobs.RenderError{Kind: kind, Err: err}
	}
	return Message{Subject: subject, HTML: buf.String()}, nil
}

func (r Renderer) formatWhen(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if raw == "" || err != nil {
		return "Date TBA"
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Monday, 02 Jan 2006 at 03:04 PM MST")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
