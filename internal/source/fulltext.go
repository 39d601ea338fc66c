package source

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// FullText returns the readable text of a bulletin document. HTML documents
// are reduced to their text nodes with script and style content skipped;
// anything else (agencies mostly publish plain text) is returned as is.
func FullText(doc []byte) string {
	if !looksLikeHTML(doc) {
		return string(doc)
	}
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return string(doc)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return b.String()
}

func looksLikeHTML(doc []byte) bool {
	head := doc
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.ToLower(bytes.TrimSpace(head))
	return bytes.HasPrefix(head, []byte("<!doctype html")) ||
		bytes.HasPrefix(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<pre"))
}
