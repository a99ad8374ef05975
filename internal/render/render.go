// Package render builds the outbound email for a legacy message: templated
// subject, text and HTML bodies, and the correlation headers that let a
// delivered mail be traced back to its record.
package render

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/afteryou/delivery/internal/mail"
	"github.com/afteryou/delivery/internal/model"
)

const subjectPrefix = "Legacy Message: "

const (
	HeaderMessageID = "X-AfterYou-Message-ID"
	HeaderCreated   = "X-AfterYou-Created"
	HeaderScheduled = "X-AfterYou-Scheduled"
)

const textBody = `{{.Title}}

{{.Content}}

--
This message was written on {{.CreatedAt}} and scheduled for delivery
on {{.DeliveryDate}} through AfterYou.
`

const htmlBody = `<!DOCTYPE html>
<html>
<body>
<h2>{{.Title}}</h2>
<p style="white-space: pre-wrap;">{{.Content}}</p>
<hr>
<p><small>This message was written on {{.CreatedAt}} and scheduled for
delivery on {{.DeliveryDate}} through AfterYou.</small></p>
</body>
</html>
`

type Renderer struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

func New() *Renderer {
	return &Renderer{
		text: texttemplate.Must(texttemplate.New("text").Parse(textBody)),
		html: htmltemplate.Must(htmltemplate.New("html").Parse(htmlBody)),
	}
}

type templateData struct {
	Title        string
	Content      string
	CreatedAt    string
	DeliveryDate string
}

// Render produces the full email payload for a message. The delivery time
// in the headers is the scheduled time, not the actual send time.
func (r *Renderer) Render(m *model.Message) (mail.Email, error) {
	data := templateData{
		Title:        m.Title,
		Content:      m.Content,
		CreatedAt:    m.CreatedAt.UTC().Format(time.RFC3339),
		DeliveryDate: m.DeliveryDate.UTC().Format(time.RFC3339),
	}

	var text strings.Builder
	if err := r.text.Execute(&text, data); err != nil {
		return mail.Email{}, err
	}

	var html strings.Builder
	if err := r.html.Execute(&html, data); err != nil {
		return mail.Email{}, err
	}

	return mail.Email{
		To:       m.RecipientEmail,
		Subject:  subjectPrefix + m.Title,
		TextBody: text.String(),
		HTMLBody: html.String(),
		Headers: map[string]string{
			HeaderMessageID: m.ID.String(),
			HeaderCreated:   m.CreatedAt.UTC().Format(time.RFC3339),
			HeaderScheduled: m.DeliveryDate.UTC().Format(time.RFC3339),
		},
	}, nil
}
