// Package edit applies in-place changes to the speech content of protocols.
package edit

import (
	"github.com/beevik/etree"
	"github.com/dgallion1/protocorpus/internal/tei"
)

// Result counts what an edit visited and changed.
type Result struct {
	Elements     int `json:"elements"`
	Changed      int `json:"changed"`
	Unrecognized int `json:"unrecognized"`
	Normalized   int `json:"normalized"`
}

// Modified reports whether the document needs to be written back.
func (r Result) Modified() bool {
	return r.Changed > 0 || r.Normalized > 0
}

// RemoveAttribute deletes key from every recognized element the walker
// yields. Unrecognized elements are counted and left alone. key may carry a
// namespace prefix, e.g. "xml:id".
func RemoveAttribute(w *tei.Walker, doc *etree.Document, key string) Result {
	var res Result
	for el := range w.Elements(doc) {
		res.Elements++
		if el.Normalized {
			res.Normalized++
		}
		if !el.Recognized() {
			res.Unrecognized++
			continue
		}
		if el.Node.RemoveAttr(key) != nil {
			res.Changed++
		}
	}
	return res
}
