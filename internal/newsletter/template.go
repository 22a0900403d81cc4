package newsletter

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// fallbackTemplate wraps a plain digest when HTML rendering fails or is
// unavailable. Inline styles only, safe for email clients.
var fallbackTemplate = template.Must(template.New("fallback").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Subject}}</title>
</head>
<body style="font-family: Arial, Helvetica, sans-serif; color: #222; max-width: 680px; margin: 0 auto; padding: 16px;">
<h1 style="font-size: 22px; border-bottom: 2px solid #3b6ea5; padding-bottom: 8px;">{{.Subject}}</h1>
<div style="font-size: 15px; line-height: 1.6; white-space: pre-wrap;">{{.Body}}</div>
<p style="font-size: 12px; color: #888; border-top: 1px solid #ddd; padding-top: 8px; margin-top: 24px;">
Generated on {{.Generated}}. You receive this newsletter because it was requested for this address.
</p>
</body>
</html>
`))

type fallbackData struct {
	Subject   string
	Body      string
	Generated string
}

// FallbackHTML wraps a markdown digest in a minimal HTML shell. Used when
// the HTML rendering pass fails so the newsletter still goes out readable.
func FallbackHTML(subject, digest string) (string, error) {
	var sb strings.Builder
	err := fallbackTemplate.Execute(&sb, fallbackData{
		Subject:   subject,
		Body:      digest,
		Generated: time.Now().UTC().Format("2006-01-02 15:04 UTC"),
	})
	if err != nil {
		return "", fmt.Errorf("fallback template failed: %w", err)
	}
	return sb.String(), nil
}

// SubjectFor builds the email subject line for a topic.
func SubjectFor(topic string, now time.Time) string {
	return fmt.Sprintf("Newsletter: %s - %s", topic, now.UTC().Format("January 2, 2006"))
}
