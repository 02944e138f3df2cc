// Package tei walks the speech content of TEI protocol documents.
package tei

import (
	"fmt"

	"github.com/beevik/etree"
)

// Namespace is the TEI namespace every protocol element is expected to carry.
const Namespace = "http://www.tei-c.org/ns/1.0"

// Kind classifies a direct child of a body div.
type Kind int

const (
	// Unrecognized marks a child whose tag is outside the known set. The
	// walk continues past it.
	Unrecognized Kind = iota
	Utterance
	Note
	PageBreak
	Segment
)

var kindByTag = map[string]Kind{
	"u":    Utterance,
	"note": Note,
	"pb":   PageBreak,
	"seg":  Segment,
}

func (k Kind) String() string {
	switch k {
	case Unrecognized:
		return "unrecognized"
	case Utterance:
		return "u"
	case Note:
		return "note"
	case PageBreak:
		return "pb"
	case Segment:
		return "seg"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Element is one yielded child: either a recognized kind with its node, or
// Unrecognized with the node whose tag did not match.
type Element struct {
	Kind Kind
	Node *etree.Element

	// Normalized is set when the node's namespace was rewritten while
	// walking.
	Normalized bool
}

// Recognized reports whether Kind is one of the known kinds.
func (e Element) Recognized() bool {
	return e.Kind != Unrecognized
}

// Tag returns the node's qualified name.
func (e Element) Tag() string {
	return QualifiedName(e.Node)
}

// QualifiedName returns "{namespace}local", or the bare local tag when the
// element resolves to no namespace.
func QualifiedName(el *etree.Element) string {
	if el == nil {
		return ""
	}
	if uri := el.NamespaceURI(); uri != "" {
		return "{" + uri + "}" + el.Tag
	}
	return el.Tag
}

// NormalizeUtterance moves a legacy utterance into ns. It applies only to an
// element whose local tag is "u" and whose resolved namespace is empty, and
// reports whether the element was changed. Child elements keep the empty
// namespace they had. Calling it again on the same element is a no-op.
func NormalizeUtterance(el *etree.Element, ns string) bool {
	if el == nil || ns == "" || el.Tag != "u" || el.NamespaceURI() != "" {
		return false
	}

	var pinned []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Space == "" && c.SelectAttr("xmlns") == nil {
			pinned = append(pinned, c)
		}
	}

	el.Space = ""
	el.RemoveAttr("xmlns")
	if el.NamespaceURI() != ns {
		el.CreateAttr("xmlns", ns)
	}

	for _, c := range pinned {
		c.CreateAttr("xmlns", "")
	}
	return true
}
