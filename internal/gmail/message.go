package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"mime"
	"net/mail"
	"strings"
	"time"
)

// Message is a transactional email to a cliente.
type Message struct {
	From    string // optional; Gmail fills in the authenticated sender when empty
	To      string
	Subject string
	// Body is plain text. It is HTML-escaped and newlines become <br>.
	Body string
}

// Validate checks the fields required to build a message.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("recipient is required")
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	if m.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if m.Body == "" {
		return fmt.Errorf("body is required")
	}
	if strings.ContainsAny(m.To+m.Subject+m.From, "\r\n") {
		return fmt.Errorf("headers must not contain line breaks")
	}
	return nil
}

var brandedTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body style="margin:0;padding:0;background:#f4f5f7;font-family:Arial,Helvetica,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background:#f4f5f7;padding:24px 0;">
<tr><td align="center">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;overflow:hidden;">
<tr><td style="background:#1e3a5f;color:#ffffff;padding:20px 32px;font-size:20px;font-weight:bold;">LawConnect</td></tr>
<tr><td style="padding:32px;color:#1f2933;font-size:15px;line-height:1.6;">{{.Body}}</td></tr>
<tr><td style="padding:16px 32px;background:#f9fafb;color:#6b7280;font-size:12px;">Este mensaje fue enviado a través de LawConnect en nombre de su abogado. © {{.Year}} LawConnect</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`))

// RenderHTML renders text into the branded template.
func RenderHTML(subject, text string, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := brandedTemplate.Execute(&buf, struct {
		Subject string
		Body    template.HTML
		Year    int
	}{
		Subject: subject,
		Body:    textToHTML(text),
		Year:    now.Year(),
	})
	if err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}

// textToHTML escapes text and converts line breaks to <br>.
func textToHTML(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return template.HTML(escaped) //nolint:gosec // escaped above
}

// BuildMIME assembles the RFC 2822 message sent to the mail API.
func BuildMIME(m *Message, now time.Time) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	html, err := RenderHTML(m.Subject, m.Body, now)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if m.From != "" {
		b.WriteString("From: " + m.From + "\r\n")
	}
	b.WriteString("To: " + m.To + "\r\n")
	b.WriteString("Subject: " + encodeRFC2047(m.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return b.String(), nil
}

// encodeRFC2047 encodes non-ASCII header values (tildes, eñes) per RFC 2047.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// EncodeRaw encodes a MIME message as base64url without padding, the
// transport encoding of the mail API's raw field.
func EncodeRaw(mimeMessage string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(mimeMessage))
}

// DecodeRaw reverses EncodeRaw. Padded input is accepted as well.
func DecodeRaw(raw string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return "", fmt.Errorf("decode raw message: %w", err)
	}
	return string(data), nil
}
