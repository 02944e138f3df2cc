package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/protocorpus/internal/corpus"
	"github.com/dgallion1/protocorpus/internal/document"
	"github.com/dgallion1/protocorpus/internal/metadata"
	"github.com/go-chi/chi/v5"
)

type protocolEntry struct {
	Path     string                    `json:"path"`
	Metadata metadata.ProtocolMetadata `json:"metadata"`
}

// handleMetadata infers metadata for an arbitrary filename.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("filename")
	if name == "" {
		jsonError(w, "filename query parameter is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, metadata.Infer(name))
}

// handleListProtocols lists documents, optionally bounded by year.
func (s *Server) handleListProtocols(w http.ResponseWriter, r *http.Request) {
	entries, ok := s.listEntries(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(entries),
		"protocols": entries,
	})
}

// handleSummary buckets listed documents by year and chamber.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	entries, ok := s.listEntries(w, r)
	if !ok {
		return
	}
	records := make([]metadata.ProtocolMetadata, len(entries))
	for i, e := range entries {
		records[i] = e.Metadata
	}
	writeJSON(w, http.StatusOK, metadata.Summarize(records))
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) ([]protocolEntry, bool) {
	years, err := parseYears(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	seq, err := s.indexer.List(s.cfg.CorpusRoot, years)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	entries := []protocolEntry{}
	for path, err := range seq {
		if err != nil {
			s.log.Error("list protocols", "error", err)
			jsonError(w, "failed to list protocols", http.StatusInternalServerError)
			return nil, false
		}
		entries = append(entries, protocolEntry{
			Path:     filepath.ToSlash(path),
			Metadata: metadata.Infer(filepath.Base(path)),
		})
	}
	return entries, true
}

type elementView struct {
	Kind       string `json:"kind"`
	Tag        string `json:"tag"`
	ID         string `json:"id,omitempty"`
	Who        string `json:"who,omitempty"`
	Normalized bool   `json:"normalized,omitempty"`
}

// handleElements returns the traversal stream of one protocol.
func (s *Server) handleElements(w http.ResponseWriter, r *http.Request) {
	protocolID := chi.URLParam(r, "protocolID")
	if protocolID == "" || strings.ContainsAny(protocolID, `/\`) {
		jsonError(w, "invalid protocol id", http.StatusBadRequest)
		return
	}

	path, err := s.findProtocol(protocolID)
	if err != nil {
		s.log.Error("find protocol", "protocol_id", protocolID, "error", err)
		jsonError(w, "failed to list protocols", http.StatusInternalServerError)
		return
	}
	if path == "" {
		jsonError(w, "protocol not found", http.StatusNotFound)
		return
	}

	doc, err := document.ReadFile(path)
	if err != nil {
		var pe *document.ParseError
		if errors.As(err, &pe) {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		jsonError(w, "failed to read protocol", http.StatusInternalServerError)
		return
	}

	elements := []elementView{}
	counts := map[string]int{}
	for el := range s.walker.Elements(doc) {
		counts[el.Kind.String()]++
		elements = append(elements, elementView{
			Kind:       el.Kind.String(),
			Tag:        el.Tag(),
			ID:         el.Node.SelectAttrValue("xml:id", ""),
			Who:        el.Node.SelectAttrValue("who", ""),
			Normalized: el.Normalized,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":     filepath.ToSlash(path),
		"metadata": metadata.Infer(filepath.Base(path)),
		"counts":   counts,
		"elements": elements,
	})
}

// findProtocol returns the first listed document whose inferred protocol id
// matches, or "" when there is none.
func (s *Server) findProtocol(protocolID string) (string, error) {
	seq, err := s.indexer.List(s.cfg.CorpusRoot, corpus.YearRange{})
	if err != nil {
		return "", err
	}
	for path, err := range seq {
		if err != nil {
			return "", err
		}
		if metadata.Infer(filepath.Base(path)).ProtocolID == protocolID {
			return path, nil
		}
	}
	return "", nil
}

func parseYears(r *http.Request) (corpus.YearRange, error) {
	var years corpus.YearRange
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"start", &years.Start}, {"end", &years.End}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return years, fmt.Errorf("%s must be a positive year, got %q", p.name, v)
		}
		*p.dst = n
	}
	return years, nil
}
