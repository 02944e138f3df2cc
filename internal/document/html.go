package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

// ReadHTML parses HTML leniently and mirrors its element structure as XML.
// Elements, attributes and text are kept; comments and the doctype are
// dropped. Names that are not valid XML are rewritten with underscores.
func ReadHTML(r io.Reader) (*etree.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	top := findElement(root, "html")
	if top == nil {
		return nil, fmt.Errorf("parse html: no html element")
	}

	doc := etree.NewDocument()
	convert(&doc.Element, top)
	return doc, nil
}

// Title returns the text of the first <title> element in an HTML-derived
// document, or "".
func Title(doc *etree.Document) string {
	if doc == nil || doc.Root() == nil {
		return ""
	}
	if t := doc.Root().FindElement(".//title"); t != nil {
		return strings.TrimSpace(t.Text())
	}
	return ""
}

func convert(parent *etree.Element, n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		el := parent.CreateElement(xmlName(n.Data))
		for _, a := range n.Attr {
			key := xmlName(a.Key)
			if key == "xmlns" || el.SelectAttr(key) != nil {
				continue
			}
			el.CreateAttr(key, a.Val)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			convert(el, c)
		}
	case html.TextNode:
		parent.CreateText(n.Data)
	}
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// xmlName maps an HTML tag or attribute name onto an XML name without a
// namespace prefix.
func xmlName(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case i > 0 && (r == '-' || r == '.' || r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
