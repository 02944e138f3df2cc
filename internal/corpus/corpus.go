// Package corpus enumerates protocol documents under a corpus root.
//
// Listings are sorted lexicographically by path so every run over an
// unchanged tree processes documents in the same order. A year filter pads
// the requested range by one year on each side to catch documents from
// session transitions. Documents whose filename carries no year are dropped
// silently whenever a filter is active; this is deliberate and callers that
// need every document must list without a range.
package corpus

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dgallion1/protocorpus/internal/metadata"
)

// DefaultExtension is the document extension listed when none is configured.
const DefaultExtension = ".xml"

// ErrInvalidArgument is returned when a listing is requested with a
// half-open year range.
var ErrInvalidArgument = errors.New("invalid argument")

// YearRange bounds a listing by inferred protocol year. Zero means unset;
// Start and End must be set together.
type YearRange struct {
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`
}

// Years is shorthand for YearRange{Start: start, End: end}.
func Years(start, end int) YearRange {
	return YearRange{Start: start, End: end}
}

// Active reports whether the range filters anything.
func (r YearRange) Active() bool {
	return r.Start != 0 || r.End != 0
}

// Validate rejects a range with exactly one bound set.
func (r YearRange) Validate() error {
	if (r.Start == 0) != (r.End == 0) {
		return fmt.Errorf("%w: provide both start and end year or neither (start=%d, end=%d)",
			ErrInvalidArgument, r.Start, r.End)
	}
	return nil
}

// Contains applies the padded rule Start-1 <= year <= End+1.
func (r YearRange) Contains(year int) bool {
	return r.Start-1 <= year && year <= r.End+1
}

// Includes reports whether a document with the given metadata passes the
// filter. An inactive range includes everything; an active one excludes
// documents with no inferred year.
func (r YearRange) Includes(m metadata.ProtocolMetadata) bool {
	if !r.Active() {
		return true
	}
	return m.HasYear() && r.Contains(*m.Year)
}

// Indexer lists documents with a given extension.
type Indexer struct {
	ext string
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithExtension sets the document extension, including the leading dot.
func WithExtension(ext string) Option {
	return func(ix *Indexer) {
		if ext != "" {
			ix.ext = ext
		}
	}
}

func NewIndexer(opts ...Option) *Indexer {
	ix := &Indexer{ext: DefaultExtension}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Extension returns the configured document extension.
func (ix *Indexer) Extension() string {
	return ix.ext
}

// List returns the documents under root that pass years, in lexicographic
// path order. Paths are root joined with the document's path below it.
//
// The range is checked before anything is read. The returned sequence walks
// the filesystem each time it is ranged over; a filesystem error is yielded
// once as the sequence's error and ends it.
func (ix *Indexer) List(root string, years YearRange) (iter.Seq2[string, error], error) {
	if err := years.Validate(); err != nil {
		return nil, err
	}

	return func(yield func(string, error) bool) {
		paths, err := ix.enumerate(root)
		if err != nil {
			yield("", err)
			return
		}
		for _, p := range paths {
			if years.Active() && !years.Includes(metadata.Infer(filepath.Base(p))) {
				continue
			}
			if !yield(p, nil) {
				return
			}
		}
	}, nil
}

func (ix *Indexer) enumerate(root string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), "**/*"+ix.ext,
		doublestar.WithFilesOnly(),
		doublestar.WithFailOnIOErrors(),
	)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", root, err)
	}

	slices.Sort(matches)
	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = filepath.Join(root, filepath.FromSlash(m))
	}
	return paths, nil
}

// Protocols lists documents with the default extension.
func Protocols(root string, years YearRange) (iter.Seq2[string, error], error) {
	return NewIndexer().List(root, years)
}

// Collect drains a listing into a slice, stopping at the first error.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	var out []string
	for p, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}
