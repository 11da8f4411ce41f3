package notify

import (
	"fmt"
	"html"
)

// EmailMessage is a composed secondary-channel message.
type EmailMessage struct {
	Subject  string
	TextBody string
	HTMLBody string
}

// ComposeEmail builds the fallback email for a notification. The link is
// embedded as a clickable reference only when links resolves it (absolute
// http(s), same origin as the configured base, or relative); otherwise the
// message carries the body alone. All text is escaped against markup
// injection in the HTML part.
func ComposeEmail(n Notification, links *LinkResolver) EmailMessage {
	msg := EmailMessage{
		Subject:  n.Title,
		TextBody: n.Body,
		HTMLBody: fmt.Sprintf("<p>%s</p>", html.EscapeString(n.Body)),
	}

	if links == nil {
		return msg
	}
	if href, ok := links.Resolve(n.Link); ok {
		msg.TextBody += "\n\n" + href
		// Attribute value needs HTML escaping, not Go quoting: a raw quote
		// in the URL would otherwise terminate the attribute.
		msg.HTMLBody += fmt.Sprintf(`<p><a href="%s">%s</a></p>`,
			html.EscapeString(href), html.EscapeString(href))
	}
	return msg
}
