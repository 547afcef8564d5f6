package changelog

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Key uniquely identifies a changeset within the corpus.
type Key struct {
	Path   string `json:"path"`
	ID     string `json:"id"`
	Author string `json:"author"`
}

// Record is the extracted value of one changeset at one revision.
// The re-run flags come from the revision the record was extracted
// from; the digest is a pure function of the changeset's content.
type Record struct {
	Key         Key
	RunOnChange bool
	RunAlways   bool
	Digest      string
}

// Snapshot maps changeset keys to records for one document at one
// revision, preserving document order.
type Snapshot struct {
	order      []Key
	records    map[Key]Record
	collisions []Key
}

// NewSnapshot returns an empty snapshot. Used for documents absent at
// the base revision.
func NewSnapshot() *Snapshot {
	return &Snapshot{records: make(map[Key]Record)}
}

// Keys returns changeset keys in document order. A key that collided
// appears once, at its first position.
func (s *Snapshot) Keys() []Key {
	return s.order
}

// Lookup returns the record for a key, if present. After a collision
// the record is the last one encountered in the document.
func (s *Snapshot) Lookup(k Key) (Record, bool) {
	r, ok := s.records[k]
	return r, ok
}

// Len returns the number of distinct changeset keys.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// Collisions returns the keys that appeared more than once in the
// document. Extraction keeps the last occurrence (Liquibase-compatible
// behavior) but callers should surface the ambiguity.
func (s *Snapshot) Collisions() []Key {
	return s.collisions
}

func (s *Snapshot) put(r Record) {
	if _, seen := s.records[r.Key]; seen {
		s.collisions = append(s.collisions, r.Key)
	} else {
		s.order = append(s.order, r.Key)
	}
	s.records[r.Key] = r
}

// MalformedDocumentError reports a changelog that failed to parse at
// some revision. It aborts the whole governance check upstream.
type MalformedDocumentError struct {
	Path string
	Err  error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed changelog %s: %v", e.Path, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

// Extract parses a changelog document and returns the snapshot of the
// changesets it contains. Parse failures return *MalformedDocumentError.
//
// Element lookup is namespace-transparent: a changeSet element counts
// when its local name is "changeSet" and its namespace is the document
// root's default namespace, or empty when the document declares none.
// Prefixed dialects that leave the default namespace unset therefore
// behave like the un-namespaced form.
func Extract(doc []byte, path string) (*Snapshot, error) {
	root, defaultNS, err := parse(doc)
	if err != nil {
		return nil, &MalformedDocumentError{Path: path, Err: err}
	}

	snap := NewSnapshot()
	walk(root, func(el *element) {
		if el.local != "changeSet" || el.space != defaultNS {
			return
		}
		snap.put(Record{
			Key: Key{
				Path:   path,
				ID:     el.attr("id"),
				Author: el.attr("author"),
			},
			RunOnChange: parseFlag(el.attr("runOnChange")),
			RunAlways:   parseFlag(el.attr("runAlways")),
			Digest:      Digest(el),
		})
	})
	return snap, nil
}

// attr returns the value of an unqualified attribute, "" if absent.
func (e *element) attr(local string) string {
	for _, a := range e.attrs {
		if a.space == "" && a.local == local {
			return a.value
		}
	}
	return ""
}

// parseFlag accepts the literal token "true" case-insensitively;
// everything else, including absence, is false.
func parseFlag(v string) bool {
	return strings.EqualFold(v, "true")
}

// walk visits every element of the tree in document order.
func walk(el *element, visit func(*element)) {
	visit(el)
	for _, n := range el.nodes {
		if child, ok := n.(*element); ok {
			walk(child, visit)
		}
	}
}

// parse builds the element tree for a document and reports the default
// namespace declared on its root element ("" when none). Namespace
// prefixes are resolved by the decoder; declarations are not kept as
// attributes.
func parse(doc []byte) (*element, string, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))

	var root *element
	var defaultNS string
	var stack []*element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{space: t.Name.Space, local: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					if root == nil && a.Name.Space == "" {
						defaultNS = a.Value
					}
					continue
				}
				el.attrs = append(el.attrs, attribute{
					space: a.Name.Space,
					local: a.Name.Local,
					value: a.Value,
				})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, "", errors.New("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.nodes = append(parent.nodes, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			// The decoder reuses the CharData buffer; copy now.
			s := string(t)
			if isWhitespace(s) {
				continue
			}
			parent := stack[len(stack)-1]
			parent.nodes = append(parent.nodes, text(s))
		}
		// Comments, directives, and processing instructions carry no
		// changeset content and are skipped.
	}

	if root == nil {
		return nil, "", errors.New("document has no root element")
	}
	return root, defaultNS, nil
}
