// Package document reads protocol files into element trees and writes them
// back.
package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
)

// ParseError reports a file that could not be read as XML.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReadFile parses the XML file at path. Errors opening the file are
// returned as is; malformed content is reported as *ParseError.
func ReadFile(path string) (*etree.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads an XML document from r. name is used in errors only.
func Parse(r io.Reader, name string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, &ParseError{Path: name, Err: err}
	}
	if doc.Root() == nil {
		return nil, &ParseError{Path: name, Err: errors.New("no root element")}
	}
	return doc, nil
}

// Indent is the number of spaces per level used when writing.
const Indent = 2

// Write serializes doc to w with an XML declaration, dropping whitespace-only
// text between elements and re-indenting.
func Write(doc *etree.Document, w io.Writer) error {
	ensureDeclaration(doc)
	doc.Indent(Indent)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	return nil
}

// WriteFile writes doc to path through a temporary file in the same
// directory, so a failed write leaves the original in place.
func WriteFile(doc *etree.Document, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := Write(doc, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func ensureDeclaration(doc *etree.Document) {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			return
		}
	}
	doc.InsertChildAt(0, etree.NewProcInst("xml", `version="1.0" encoding="UTF-8"`))
}
