package tei

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const protocolXML = `<?xml version="1.0" encoding="utf-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader><div><u xml:id="header-u"/></div></teiHeader>
  <text>
    <body>
      <div>
        <u xml:id="u1" who="a">Herr talman!</u>
        <note xml:id="n1">Anförande</note>
        <pb n="2"/>
        <seg xml:id="s1">Jag yrkar bifall.</seg>
      </div>
      <div>
        <u xmlns="" xml:id="legacy"><seg>kvar</seg></u>
        <table/>
        <note xml:id="n2"/>
      </div>
      <div>
        <div><u xml:id="nested"/></div>
      </div>
    </body>
    <back><div><u xml:id="back-u"/></div></back>
  </text>
</TEI>`

func parse(t *testing.T, s string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	return doc
}

func collect(w *Walker, doc *etree.Document) []Element {
	var out []Element
	for el := range w.Elements(doc) {
		out = append(out, el)
	}
	return out
}

func kinds(els []Element) []Kind {
	out := make([]Kind, len(els))
	for i, el := range els {
		out[i] = el.Kind
	}
	return out
}

func newTestWalker(buf *bytes.Buffer) *Walker {
	return NewWalker(slog.New(slog.NewTextHandler(buf, nil)))
}

func TestElements_Order(t *testing.T) {
	var logs bytes.Buffer
	doc := parse(t, protocolXML)

	got := collect(newTestWalker(&logs), doc)
	assert.Equal(t, []Kind{
		Utterance, Note, PageBreak, Segment,
		Utterance, Unrecognized, Note,
		Unrecognized,
	}, kinds(got))

	assert.Equal(t, "u1", got[0].Node.SelectAttrValue("xml:id", ""))
	assert.Equal(t, "s1", got[3].Node.SelectAttrValue("xml:id", ""))
	assert.Equal(t, "legacy", got[4].Node.SelectAttrValue("xml:id", ""))
	assert.Equal(t, "n2", got[6].Node.SelectAttrValue("xml:id", ""))
}

func TestElements_Unrecognized(t *testing.T) {
	var logs bytes.Buffer
	doc := parse(t, protocolXML)

	got := collect(newTestWalker(&logs), doc)

	table := got[5]
	assert.False(t, table.Recognized())
	assert.Equal(t, "{"+Namespace+"}table", table.Tag())

	nested := got[7]
	assert.False(t, nested.Recognized())
	assert.Equal(t, "div", nested.Node.Tag)

	out := logs.String()
	assert.Contains(t, out, "unrecognized element")
	assert.Contains(t, out, "}table")
	assert.Equal(t, 2, strings.Count(out, "unrecognized element"))
}

func TestElements_NormalizesLegacyUtterance(t *testing.T) {
	var logs bytes.Buffer
	doc := parse(t, protocolXML)
	w := newTestWalker(&logs)

	first := collect(w, doc)
	legacy := first[4]
	require.Equal(t, Utterance, legacy.Kind)
	assert.True(t, legacy.Normalized)
	assert.Equal(t, Namespace, legacy.Node.NamespaceURI())

	inner := legacy.Node.SelectElement("seg")
	require.NotNil(t, inner)
	assert.Equal(t, "", inner.NamespaceURI(), "children keep their namespace")

	second := collect(w, doc)
	assert.Equal(t, kinds(first), kinds(second))
	assert.False(t, second[4].Normalized)
	assert.Same(t, legacy.Node, second[4].Node)

	out, err := doc.WriteToString()
	require.NoError(t, err)
	assert.NotContains(t, out, `<u xmlns="" xml:id="legacy">`)
	assert.Contains(t, out, `<u xml:id="legacy">`)
}

func TestElements_DivBoundaryOrder(t *testing.T) {
	doc := parse(t, `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body>
<div><u xml:id="a"/><u xml:id="b"/></div>
<div><u xml:id="c"/></div>
</body></text></TEI>`)

	var ids []string
	for el := range Elements(doc) {
		ids = append(ids, el.Node.SelectAttrValue("xml:id", ""))
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestElements_MultipleBodies(t *testing.T) {
	doc := parse(t, `<teiCorpus xmlns="http://www.tei-c.org/ns/1.0">
<TEI><text><body><div><u xml:id="first"/></div></body></text></TEI>
<TEI><text><body><div><pb/></div></body></text></TEI>
</teiCorpus>`)

	got := collect(NewWalker(nil), doc)
	assert.Equal(t, []Kind{Utterance, PageBreak}, kinds(got))
}

func TestElements_PrefixedNamespace(t *testing.T) {
	doc := parse(t, `<tei:TEI xmlns:tei="http://www.tei-c.org/ns/1.0"><tei:text><tei:body>
<tei:div><tei:u/><u/><tei:note/></tei:div>
</tei:body></tei:text></tei:TEI>`)

	got := collect(NewWalker(nil), doc)
	assert.Equal(t, []Kind{Utterance, Utterance, Note}, kinds(got))
	assert.True(t, got[1].Normalized)
	assert.Equal(t, Namespace, got[1].Node.NamespaceURI())
}

func TestElements_UnnamespacedDocument(t *testing.T) {
	var logs bytes.Buffer
	doc := parse(t, `<TEI><text><body><div><u/></div></body></text></TEI>`)

	assert.Empty(t, collect(newTestWalker(&logs), doc))
	assert.Empty(t, logs.String())
}

func TestElements_EarlyStop(t *testing.T) {
	var logs bytes.Buffer
	doc := parse(t, protocolXML)

	n := 0
	for range newTestWalker(&logs).Elements(doc) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
	assert.Empty(t, logs.String())
}

func TestElements_EmptyDocument(t *testing.T) {
	assert.Empty(t, collect(NewWalker(nil), etree.NewDocument()))
	assert.Empty(t, collect(NewWalker(nil), nil))
}

func TestElements_CustomNamespace(t *testing.T) {
	doc := parse(t, `<TEI xmlns="urn:x"><text><body><div><seg/></div></body></text></TEI>`)

	got := collect(NewWalker(nil, WithNamespace("urn:x")), doc)
	assert.Equal(t, []Kind{Segment}, kinds(got))
}

func TestNormalizeUtterance(t *testing.T) {
	doc := parse(t, `<TEI xmlns="http://www.tei-c.org/ns/1.0"><u xmlns=""/><note xmlns=""/><u/></TEI>`)
	children := doc.Root().ChildElements()

	assert.True(t, NormalizeUtterance(children[0], Namespace))
	assert.False(t, NormalizeUtterance(children[0], Namespace))
	assert.Equal(t, Namespace, children[0].NamespaceURI())

	assert.False(t, NormalizeUtterance(children[1], Namespace), "only utterances are rewritten")
	assert.Equal(t, "", children[1].NamespaceURI())

	assert.False(t, NormalizeUtterance(children[2], Namespace), "already namespaced")
	assert.False(t, NormalizeUtterance(nil, Namespace))
	assert.False(t, NormalizeUtterance(children[1], ""))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "u", Utterance.String())
	assert.Equal(t, "note", Note.String())
	assert.Equal(t, "pb", PageBreak.String())
	assert.Equal(t, "seg", Segment.String())
	assert.Equal(t, "unrecognized", Unrecognized.String())
}
