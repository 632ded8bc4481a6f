package provider

import (
	"encoding/base64"
	"strings"

	"golang.org/x/net/html"
	"google.golang.org/api/gmail/v1"
)

const maxPartDepth = 20

type messageBody struct {
	Text string
	HTML string
}

// ExtractBodyText returns the plain text of a message payload. text/plain
// parts win; otherwise the HTML parts are stripped to text.
func ExtractBodyText(payload *gmail.MessagePart) string {
	var body messageBody
	extractBody(payload, &body, 0)

	if text := strings.TrimSpace(body.Text); text != "" {
		return text
	}
	if body.HTML != "" {
		return StripHTML(body.HTML)
	}
	return ""
}

func extractBody(part *gmail.MessagePart, body *messageBody, depth int) {
	if part == nil || depth > maxPartDepth {
		return
	}

	if part.Body != nil && part.Body.Data != "" {
		switch strings.ToLower(part.MimeType) {
		case "text/plain":
			if data, ok := decodePart(part.Body.Data); ok {
				body.Text = appendPart(body.Text, data)
			}
		case "text/html":
			if data, ok := decodePart(part.Body.Data); ok {
				body.HTML = appendPart(body.HTML, data)
			}
		}
	}

	for _, p := range part.Parts {
		extractBody(p, body, depth+1)
	}
}

// decodePart accepts both padded and unpadded base64url.
func decodePart(data string) (string, bool) {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b), true
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b), true
	}
	return "", false
}

func appendPart(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "\n" + next
}

// StripHTML renders an HTML fragment as whitespace-collapsed text.
func StripHTML(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return strings.Join(strings.Fields(src), " ")
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head", "noscript", "title":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "td":
				sb.WriteByte(' ')
			}
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(sb.String()), " ")
}
