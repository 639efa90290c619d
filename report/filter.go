// Package report filters the XML diagnostic report emitted by the MDM
// diagnostics generator. The generator's schema is undocumented and
// unversioned, so the filter treats the document as an opaque tree: it only
// needs to enumerate elements with a known tag and read one string-valued
// child per element.
package report

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"
)

// ErrSourceMissing means the report file was never produced; remediation is
// re-running the generator, not fixing the document.
var ErrSourceMissing = errors.New("report document not found")

// ParseError wraps an XML syntax failure in the source document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Path, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Selector names the nodes to extract: every element with tag NodeTag whose
// child element Field has text equal to Value, compared case-insensitively.
// Source data casing is unreliable, so matching is never case-sensitive.
type Selector struct {
	NodeTag string
	Field   string
	Value   string
	// RootTag names the root element of the filtered output document.
	RootTag string
}

// ExtractMatching walks doc for elements matching sel and collects each
// match's full subtree, in document order, into a new independently rooted
// document. Zero matches is a normal result: an empty document and count 0.
func ExtractMatching(doc *etree.Document, sel Selector) (*etree.Document, int) {
	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := out.CreateElement(sel.RootTag)

	count := 0
	for _, el := range doc.FindElements("//" + sel.NodeTag) {
		field := el.SelectElement(sel.Field)
		if field == nil {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(field.Text()), sel.Value) {
			continue
		}
		root.AddChild(el.Copy())
		count++
	}
	return out, count
}

// ExtractFile loads the report at srcPath, filters it with sel, and writes
// the result to dstPath. It distinguishes a missing source (ErrSourceMissing)
// from a malformed one (*ParseError); callers surface these as different
// outcome reasons because they need different operator remediation.
func ExtractFile(srcPath, dstPath string, sel Selector) (int, error) {
	if _, err := os.Stat(srcPath); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrSourceMissing, srcPath)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(srcPath); err != nil {
		return 0, &ParseError{Path: srcPath, Err: err}
	}

	out, count := ExtractMatching(doc, sel)
	out.Indent(2)
	if err := out.WriteToFile(dstPath); err != nil {
		return 0, err
	}
	return count, nil
}
