package changelog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DigestDomain is the domain-separation prefix for changeset digests.
// Format: SHA256(domain + 0x00 + canonical bytes). The version suffix
// enables future canonical-form migration without digest collisions.
const DigestDomain = "changeguard/changeset/v1"

// element is a parsed XML element with all namespace prefixes resolved.
// Namespace declarations themselves are not retained: two documents that
// bind the same namespace URI to different prefixes parse to identical
// trees.
type element struct {
	space string // namespace URI, "" if none
	local string
	attrs []attribute
	nodes []node // child elements and character data, document order
}

type attribute struct {
	space string
	local string
	value string
}

// node is either *element or text.
type node interface {
	canonicalize(buf *bytes.Buffer)
}

// text is non-whitespace character data. Whitespace-only runs between
// elements are dropped at parse time; they are formatting, not content.
type text string

// Digest computes the canonical content digest of an element subtree.
// The digest is a pure function of content: attribute order, prefix
// spelling, comment placement, and indentation never affect it.
func Digest(el *element) string {
	var buf bytes.Buffer
	el.canonicalize(&buf)

	h := sha256.New()
	h.Write([]byte(DigestDomain))
	h.Write([]byte{0x00})
	h.Write(buf.Bytes())
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalize writes the element in canonical form:
//
//	<{uri}local {uri}attr="value"...>children</{uri}local>
//
// Attributes are sorted by (namespace URI, local name) and values are
// NFC normalized, so the byte form is stable across serializations.
func (e *element) canonicalize(buf *bytes.Buffer) {
	buf.WriteByte('<')
	writeQualified(buf, e.space, e.local)

	attrs := make([]attribute, len(e.attrs))
	copy(attrs, e.attrs)
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].space != attrs[j].space {
			return attrs[i].space < attrs[j].space
		}
		return attrs[i].local < attrs[j].local
	})

	for _, a := range attrs {
		buf.WriteByte(' ')
		writeQualified(buf, a.space, a.local)
		buf.WriteString(`="`)
		writeEscaped(buf, norm.NFC.String(a.value), true)
		buf.WriteByte('"')
	}
	buf.WriteByte('>')

	for _, n := range e.nodes {
		n.canonicalize(buf)
	}

	buf.WriteString("</")
	writeQualified(buf, e.space, e.local)
	buf.WriteByte('>')
}

func (t text) canonicalize(buf *bytes.Buffer) {
	writeEscaped(buf, norm.NFC.String(string(t)), false)
}

func writeQualified(buf *bytes.Buffer, space, local string) {
	if space != "" {
		buf.WriteByte('{')
		buf.WriteString(space)
		buf.WriteByte('}')
	}
	buf.WriteString(local)
}

// writeEscaped escapes the characters that would otherwise be ambiguous
// in the canonical byte form. CDATA and entity spellings in the source
// collapse to the same escaped bytes here.
func writeEscaped(buf *bytes.Buffer, s string, inAttr bool) {
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			if inAttr {
				buf.WriteString("&quot;")
			} else {
				buf.WriteRune(r)
			}
		default:
			buf.WriteRune(r)
		}
	}
}

// isWhitespace reports whether s consists only of XML whitespace.
func isWhitespace(s string) bool {
	return strings.TrimLeft(s, " \t\r\n") == ""
}
