package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	gmailapi "google.golang.org/api/gmail/v1"
)

const (
	mimePlain = "text/plain"
	mimeHTML  = "text/html"
)

// PayloadText returns the readable body of a message: the first text/plain
// part, else the first text/html part converted to text. It returns "" when
// the message has neither.
func PayloadText(payload *gmailapi.MessagePart) (string, error) {
	if payload == nil {
		return "", nil
	}
	if part := findPart(payload, mimePlain); part != nil {
		return decodeBody(part.Body.Data)
	}
	if part := findPart(payload, mimeHTML); part != nil {
		raw, err := decodeBody(part.Body.Data)
		if err != nil {
			return "", err
		}
		return HTMLToText(raw)
	}
	return "", nil
}

// findPart walks the MIME tree depth first for a part of the given type
// that carries inline data.
func findPart(part *gmailapi.MessagePart, mimeType string) *gmailapi.MessagePart {
	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return part
	}
	for _, p := range part.Parts {
		if found := findPart(p, mimeType); found != nil {
			return found
		}
	}
	return nil
}

// decodeBody decodes Gmail's base64url body data, padded or not.
func decodeBody(data string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", fmt.Errorf("decoding body: %w", err)
	}
	return strings.ToValidUTF8(string(b), ""), nil
}

// HTMLToText extracts the visible text of an HTML document. Text nodes keep
// their own whitespace and are joined with newlines, so text split by inline
// markup reads as one run once line breaks are removed. Script and style
// contents are dropped.
func HTMLToText(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style || n.DataAtom == atom.Head) {
			return
		}
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(parts, "\n"), nil
}
