package selector

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"
	"github.com/mmcdole/gofeed"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
)

// Format is the declared wire format of a feed document.
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

// ParseFormat maps a configuration string onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "xml", "atom", "rss":
		return FormatXML, nil
	default:
		return "", fmt.Errorf("unknown document format %q", s)
	}
}

// Node is a parsed document or one item within it.
type Node interface {
	value(s Selector) (string, bool)
	items(s Selector) []Node
}

// Parse parses data according to format. Structurally invalid documents fail
// with an error wrapping domain.ErrParse.
func Parse(format Format, data []byte) (Node, error) {
	switch format {
	case FormatJSON:
		return ParseJSON(data)
	case FormatXML:
		return ParseXML(data)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", domain.ErrParse, format)
	}
}

// ParseJSON parses a JSON document.
func ParseJSON(data []byte) (Node, error) {
	if len(bytes.TrimSpace(data)) == 0 || !jsoniter.Valid(data) {
		return nil, fmt.Errorf("%w: invalid json document", domain.ErrParse)
	}
	return jsonNode{any: jsoniter.Get(data)}, nil
}

// ParseXML parses an Atom or RSS document. Anything that is not recognizably
// a feed is rejected.
func ParseXML(data []byte) (Node, error) {
	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeAtom, gofeed.FeedTypeRSS:
	default:
		return nil, fmt.Errorf("%w: not an atom or rss document", domain.ErrParse)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return xmlNode{sel: doc.Selection}, nil
}

type jsonNode struct {
	any jsoniter.Any
}

func (n jsonNode) value(s Selector) (string, bool) {
	var target jsoniter.Any
	switch s.kind {
	case KindRoot:
		target = n.any
	case KindKey:
		target = n.lookup(s.path)
	default:
		return "", false
	}
	switch target.ValueType() {
	case jsoniter.StringValue, jsoniter.NumberValue, jsoniter.BoolValue:
		return target.ToString(), true
	default:
		return "", false
	}
}

func (n jsonNode) items(s Selector) []Node {
	var target jsoniter.Any
	switch s.kind {
	case KindRoot:
		target = n.any
	case KindKey:
		target = n.lookup(s.path)
	default:
		return nil
	}
	switch target.ValueType() {
	case jsoniter.ArrayValue:
		out := make([]Node, 0, target.Size())
		for i := 0; i < target.Size(); i++ {
			out = append(out, jsonNode{any: target.Get(i)})
		}
		return out
	case jsoniter.ObjectValue:
		return []Node{jsonNode{any: target}}
	default:
		return nil
	}
}

func (n jsonNode) lookup(path string) jsoniter.Any {
	cur := n.any
	for _, key := range strings.Split(path, ".") {
		if cur.ValueType() != jsoniter.ObjectValue {
			return jsoniter.Wrap(nil)
		}
		cur = cur.Get(key)
	}
	return cur
}

type xmlNode struct {
	sel *goquery.Selection
}

func (n xmlNode) value(s Selector) (string, bool) {
	switch s.kind {
	case KindRoot:
		return n.sel.Text(), true
	case KindKey:
		child := n.sel.ChildrenFiltered(s.path).First()
		if child.Length() == 0 {
			return "", false
		}
		return child.Text(), true
	case KindText:
		m := n.match(s.path)
		if m.Length() == 0 {
			return "", false
		}
		return m.Text(), true
	case KindAttr:
		m := n.match(s.path)
		if m.Length() == 0 {
			return "", false
		}
		return m.Attr(s.attr)
	default:
		return "", false
	}
}

func (n xmlNode) match(css string) *goquery.Selection {
	if css == "" {
		return n.sel
	}
	return n.sel.Find(css).First()
}

func (n xmlNode) items(s Selector) []Node {
	var found *goquery.Selection
	switch s.kind {
	case KindRoot:
		return []Node{n}
	case KindKey, KindText, KindAttr:
		found = n.sel.Find(s.path)
	default:
		return nil
	}
	out := make([]Node, 0, found.Length())
	found.Each(func(_ int, item *goquery.Selection) {
		out = append(out, xmlNode{sel: item})
	})
	return out
}
