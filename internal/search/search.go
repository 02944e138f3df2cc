// Package search keeps a full-text index of protocol utterances.
package search

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/blevesearch/bleve/v2"
	"github.com/dgallion1/protocorpus/internal/document"
	"github.com/dgallion1/protocorpus/internal/metadata"
	"github.com/dgallion1/protocorpus/internal/tei"
)

// batchSize is the number of utterances submitted per bleve batch.
const batchSize = 100

// Utterance is the indexed form of one speech turn.
type Utterance struct {
	ID         string
	ProtocolID string
	Path       string
	Who        string
	Year       int
	Chamber    string
	Position   int
	Text       string
}

func (u Utterance) fields() map[string]any {
	f := map[string]any{
		"protocol_id": u.ProtocolID,
		"path":        u.Path,
		"who":         u.Who,
		"chamber":     u.Chamber,
		"position":    u.Position,
		"text":        u.Text,
	}
	if u.Year != 0 {
		f["year"] = u.Year
	}
	return f
}

// Index wraps a bleve index of utterances.
type Index struct {
	idx bleve.Index
}

// Create builds a new on-disk index at dir, replacing any existing one.
func Create(dir string) (*Index, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("remove old index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	idx, err := bleve.New(dir, bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Open opens an existing index at dir.
func Open(dir string) (*Index, error) {
	idx, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", dir, err)
	}
	return &Index{idx: idx}, nil
}

// NewMemIndex returns an index held in memory only.
func NewMemIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx}, nil
}

func (ix *Index) Close() error {
	return ix.idx.Close()
}

// Count returns the number of indexed utterances.
func (ix *Index) Count() (uint64, error) {
	return ix.idx.DocCount()
}

// Utterances extracts the utterances of one parsed protocol in document
// order. Utterances without an xml:id get "<protocol>#<position>".
func Utterances(w *tei.Walker, path string, doc *etree.Document) []Utterance {
	meta := metadata.Infer(filepath.Base(path))
	year := 0
	if meta.HasYear() {
		year = *meta.Year
	}

	var out []Utterance
	pos := 0
	for el := range w.Elements(doc) {
		if el.Kind != tei.Utterance {
			continue
		}
		pos++
		id := el.Node.SelectAttrValue("xml:id", "")
		if id == "" {
			id = fmt.Sprintf("%s#%d", meta.ProtocolID, pos)
		}
		out = append(out, Utterance{
			ID:         id,
			ProtocolID: meta.ProtocolID,
			Path:       filepath.ToSlash(path),
			Who:        el.Node.SelectAttrValue("who", ""),
			Year:       year,
			Chamber:    meta.Chamber.Label(),
			Position:   pos,
			Text:       textContent(el.Node),
		})
	}
	return out
}

// Add indexes utterances in batches.
func (ix *Index) Add(utterances []Utterance) error {
	batch := ix.idx.NewBatch()
	for _, u := range utterances {
		if err := batch.Index(u.ID, u.fields()); err != nil {
			return fmt.Errorf("add %s to batch: %w", u.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := ix.idx.Batch(batch); err != nil {
				return fmt.Errorf("index batch: %w", err)
			}
			batch = ix.idx.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := ix.idx.Batch(batch); err != nil {
			return fmt.Errorf("index final batch: %w", err)
		}
	}
	return nil
}

// BuildStats summarizes a corpus indexing pass.
type BuildStats struct {
	Documents  int `json:"documents"`
	Utterances int `json:"utterances"`
	Failed     int `json:"failed"`
}

// IndexCorpus parses every listed document and indexes its utterances.
// Documents that fail to parse are counted and skipped; a listing error
// stops the pass.
func (ix *Index) IndexCorpus(ctx context.Context, w *tei.Walker, paths iter.Seq2[string, error], onError func(path string, err error)) (BuildStats, error) {
	var stats BuildStats
	for path, err := range paths {
		if err != nil {
			return stats, err
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		doc, err := document.ReadFile(path)
		if err != nil {
			stats.Failed++
			if onError != nil {
				onError(path, err)
			}
			continue
		}

		utterances := Utterances(w, path, doc)
		if err := ix.Add(utterances); err != nil {
			return stats, err
		}
		stats.Documents++
		stats.Utterances += len(utterances)
	}
	return stats, nil
}

// Hit is one search result.
type Hit struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	ProtocolID string  `json:"protocol_id"`
	Who        string  `json:"who,omitempty"`
	Year       int     `json:"year,omitempty"`
	Chamber    string  `json:"chamber"`
	Text       string  `json:"text"`
}

// Results is a page of hits and the total match count.
type Results struct {
	Total uint64 `json:"total"`
	Hits  []Hit  `json:"hits"`
}

// Search runs a match query against utterance text and metadata.
func (ix *Index) Search(q string, size int) (Results, error) {
	if strings.TrimSpace(q) == "" {
		return Results{}, fmt.Errorf("empty query")
	}
	if size <= 0 {
		size = 10
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), size, 0, false)
	req.Fields = []string{"protocol_id", "who", "year", "chamber", "text"}

	res, err := ix.idx.Search(req)
	if err != nil {
		return Results{}, fmt.Errorf("search: %w", err)
	}

	out := Results{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		hit := Hit{
			ID:         h.ID,
			Score:      h.Score,
			ProtocolID: stringField(h.Fields, "protocol_id"),
			Who:        stringField(h.Fields, "who"),
			Chamber:    stringField(h.Fields, "chamber"),
			Text:       stringField(h.Fields, "text"),
		}
		if y, ok := h.Fields["year"].(float64); ok {
			hit.Year = int(y)
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

// textContent joins all text below el with single spaces.
func textContent(el *etree.Element) string {
	var buf strings.Builder
	var extract func(*etree.Element)
	extract = func(e *etree.Element) {
		for _, tok := range e.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				buf.WriteString(t.Data)
				buf.WriteByte(' ')
			case *etree.Element:
				extract(t)
			}
		}
	}
	extract(el)
	return strings.Join(strings.Fields(buf.String()), " ")
}
