package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/protocorpus/internal/document"
	"github.com/dgallion1/protocorpus/internal/edit"
	"github.com/dgallion1/protocorpus/internal/tei"
)

// ErrUnrecognized is returned by a strict CheckTask when a document has
// content elements outside the known kinds.
var ErrUnrecognized = errors.New("unrecognized content elements")

// Task is the per-document work of a run. Process owns the document at path
// for the duration of the call.
type Task interface {
	Name() string
	Process(ctx context.Context, path string) (Outcome, error)
}

// Outcome is what a task did to one document.
type Outcome struct {
	Elements     int
	Changed      int
	Unrecognized int
	Written      bool
}

// RemoveAttributeTask strips one attribute from every content element and
// writes the document back when anything changed.
type RemoveAttributeTask struct {
	Key    string
	Walker *tei.Walker
}

func (t RemoveAttributeTask) Name() string { return "remove-attribute" }

func (t RemoveAttributeTask) Process(ctx context.Context, path string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	doc, err := document.ReadFile(path)
	if err != nil {
		return Outcome{}, err
	}

	res := edit.RemoveAttribute(t.Walker, doc, t.Key)
	out := Outcome{Elements: res.Elements, Changed: res.Changed, Unrecognized: res.Unrecognized}
	if !res.Modified() {
		return out, nil
	}
	if err := document.WriteFile(doc, path); err != nil {
		return out, err
	}
	out.Written = true
	return out, nil
}

// CheckTask walks a document without changing it. In strict mode any
// unrecognized element fails the document.
type CheckTask struct {
	Walker *tei.Walker
	Strict bool
}

func (t CheckTask) Name() string { return "check" }

func (t CheckTask) Process(ctx context.Context, path string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	doc, err := document.ReadFile(path)
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	for el := range t.Walker.Elements(doc) {
		out.Elements++
		if !el.Recognized() {
			out.Unrecognized++
		}
	}
	if t.Strict && out.Unrecognized > 0 {
		return out, fmt.Errorf("%w: %d", ErrUnrecognized, out.Unrecognized)
	}
	return out, nil
}
