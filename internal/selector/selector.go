// Package selector implements declarative field extraction over parsed feed
// documents. A [Selector] is a small value describing where a field lives
// (the node itself, a JSON key, an element's text, an element's attribute)
// plus an optional named [Transform]. Evaluating a selector never fails:
// a missing path is reported as absent and the caller decides whether that
// is fatal for the field.
package selector

import "strings"

// Kind tags the variant of a Selector.
type Kind int

const (
	// KindRoot selects the node itself.
	KindRoot Kind = iota
	// KindKey selects a (possibly dotted) JSON object key, or on XML the text
	// of the first child element with that name.
	KindKey
	// KindText selects the text of the first element matching a CSS selector.
	KindText
	// KindAttr selects an attribute of the first element matching a CSS selector.
	KindAttr
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindKey:
		return "key"
	case KindText:
		return "text"
	case KindAttr:
		return "attr"
	default:
		return "unknown"
	}
}

// Selector is an immutable field locator.
type Selector struct {
	kind      Kind
	path      string
	attr      string
	transform Transform
}

// Root selects the node itself. As an items selector over JSON it means the
// document root is the array of items (the "$" path).
func Root() Selector {
	return Selector{kind: KindRoot}
}

// Key selects a JSON object key. Dots walk nested objects: "properties.title".
func Key(path string) Selector {
	return Selector{kind: KindKey, path: path}
}

// Text selects the trimmed text of the first element matching css.
func Text(css string) Selector {
	return Selector{kind: KindText, path: css}
}

// Attr selects attribute attr of the first element matching css, e.g.
// Attr("link[title=Bulletin]", "href").
func Attr(css, attr string) Selector {
	return Selector{kind: KindAttr, path: css, attr: attr}
}

// With returns a copy of s that applies t after extraction. Transforms compose
// left to right when With is called repeatedly.
func (s Selector) With(t Transform) Selector {
	if s.transform == nil {
		s.transform = t
		return s
	}
	prev := s.transform
	s.transform = func(v string, ok bool) (string, bool) {
		return t(prev(v, ok))
	}
	return s
}

// Kind reports the selector variant.
func (s Selector) Kind() Kind { return s.kind }

// Path returns the key path or CSS selector.
func (s Selector) Path() string { return s.path }

// IsZero reports whether s is the zero Selector (an unset field). The zero
// value is a Root selector without transform.
func (s Selector) IsZero() bool {
	return s.kind == KindRoot && s.path == "" && s.attr == "" && s.transform == nil
}

func (s Selector) String() string {
	switch s.kind {
	case KindRoot:
		return "$"
	case KindAttr:
		return s.path + "[" + s.attr + "]"
	default:
		return s.path
	}
}

// Evaluate resolves s against n and applies its transform.
func Evaluate(n Node, s Selector) (string, bool) {
	var (
		v  string
		ok bool
	)
	if n != nil {
		v, ok = n.value(s)
	}
	if s.transform != nil {
		v, ok = s.transform(v, ok)
	}
	if ok {
		v = strings.TrimSpace(v)
	}
	return v, ok
}

// Items resolves an items selector to the item nodes it locates. Resolving to
// nothing yields an empty slice.
func Items(n Node, s Selector) []Node {
	if n == nil {
		return nil
	}
	return n.items(s)
}
