package tei

import (
	"iter"
	"log/slog"

	"github.com/beevik/etree"
)

// Walker yields the content children of body divs.
type Walker struct {
	ns  string
	log *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithNamespace overrides the namespace elements are matched in.
func WithNamespace(ns string) WalkerOption {
	return func(w *Walker) {
		if ns != "" {
			w.ns = ns
		}
	}
}

// NewWalker returns a Walker that reports unrecognized children to log.
// A nil log uses slog.Default().
func NewWalker(log *slog.Logger, opts ...WalkerOption) *Walker {
	if log == nil {
		log = slog.Default()
	}
	w := &Walker{ns: Namespace, log: log}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Namespace returns the namespace the walker matches against.
func (w *Walker) Namespace() string {
	return w.ns
}

// Elements yields every element child of every div directly under a body,
// for each body below the document root, in document order.
//
// A legacy "u" without a namespace is normalized in place before it is
// yielded, so consumers only see namespaced utterances. Any other unknown
// child is logged and yielded as Unrecognized. The sequence can be ranged
// over repeatedly and abandoned at any point.
func (w *Walker) Elements(doc *etree.Document) iter.Seq[Element] {
	return func(yield func(Element) bool) {
		if doc == nil || doc.Root() == nil {
			return
		}
		for _, body := range w.bodies(doc.Root()) {
			for _, div := range body.ChildElements() {
				if !w.matches(div, "div") {
					continue
				}
				for _, child := range div.ChildElements() {
					if !yield(w.classify(child)) {
						return
					}
				}
			}
		}
	}
}

// Elements walks doc with a default Walker.
func Elements(doc *etree.Document) iter.Seq[Element] {
	return NewWalker(nil).Elements(doc)
}

func (w *Walker) classify(el *etree.Element) Element {
	if kind, ok := kindByTag[el.Tag]; ok && el.NamespaceURI() == w.ns {
		return Element{Kind: kind, Node: el}
	}
	if NormalizeUtterance(el, w.ns) {
		return Element{Kind: Utterance, Node: el, Normalized: true}
	}

	w.log.Warn("unrecognized element", "tag", QualifiedName(el))
	return Element{Kind: Unrecognized, Node: el}
}

// bodies collects body elements strictly below root in document order.
func (w *Walker) bodies(root *etree.Element) []*etree.Element {
	var found []*etree.Element
	var visit func(*etree.Element)
	visit = func(el *etree.Element) {
		for _, c := range el.ChildElements() {
			if w.matches(c, "body") {
				found = append(found, c)
			}
			visit(c)
		}
	}
	visit(root)
	return found
}

func (w *Walker) matches(el *etree.Element, local string) bool {
	return el.Tag == local && el.NamespaceURI() == w.ns
}
