package notification

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/saturnino-fabrica-de-software/guardian/internal/channel"
	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const defaultKind = "default"

// MessageData is everything a template may print
type MessageData struct {
	SubjectName   string
	ContactName   string
	DetectionType string
	Severity      string
	Location      string
	TrackingURL   string
	IncidentID    string
	Time          string
	Keywords      []string
	Sender        string
	Headline      string
}

// Renderer turns message data into channel messages.
type Renderer struct {
	tmpl   *template.Template
	sender string
}

// NewRenderer parses the embedded templates. sender is appended as the
// signature line when set.
func NewRenderer(sender string) (*Renderer, error) {
	funcs := template.FuncMap{
		"join":  strings.Join,
		"spell": spell,
	}

	tmpl, err := template.New("notification").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}

	return &Renderer{tmpl: tmpl, sender: sender}, nil
}

// Render builds the message for ch. Detection types without their own
// wording use the default templates.
func (r *Renderer) Render(ch domain.Channel, d MessageData) (channel.Message, error) {
	kind := d.DetectionType
	if kind == "" || r.tmpl.Lookup(kind+".headline") == nil {
		kind = defaultKind
	}
	if d.Sender == "" {
		d.Sender = r.sender
	}

	headline, err := r.exec(kind+".headline", d)
	if err != nil {
		return channel.Message{}, err
	}
	d.Headline = headline

	switch ch {
	case domain.ChannelSMS:
		body, err := r.exec("sms", d)
		return channel.Message{Body: body}, err
	case domain.ChannelVoice:
		body, err := r.exec(kind+".voice", d)
		return channel.Message{Body: body}, err
	case domain.ChannelEmail:
		subject, err := r.exec("email_subject", d)
		if err != nil {
			return channel.Message{}, err
		}
		body, err := r.exec("email_body", d)
		return channel.Message{Subject: subject, Body: body}, err
	default:
		return channel.Message{}, fmt.Errorf("no template for channel %q", ch)
	}
}

func (r *Renderer) exec(name string, d MessageData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, d); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// spell separates characters so text-to-speech reads an identifier letter by letter.
func spell(s string) string {
	var parts []string
	for _, r := range s {
		if r == '-' {
			continue
		}
		parts = append(parts, string(r))
	}
	return strings.Join(parts, " ")
}

// describeLocation prefers the place name and falls back to coordinates.
func describeLocation(l domain.Location) string {
	switch {
	case l.PlaceName != "":
		return l.PlaceName
	case !l.IsZero():
		return fmt.Sprintf("%.5f, %.5f", l.Latitude, l.Longitude)
	default:
		return "Unknown Location"
	}
}
