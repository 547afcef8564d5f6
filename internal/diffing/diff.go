// Package diffing matches two snapshots of the same changelog document
// and reports, per changeset present in both, whether its content
// digest changed between them.
package diffing

import (
	"changeguard/internal/changelog"
)

// Change pairs a changeset key present in both revisions with its head
// record. Changed is true when the content digest differs from base.
type Change struct {
	Key     changelog.Key
	Head    changelog.Record
	Changed bool
}

// Diff compares a base snapshot against a head snapshot. The result
// follows head document order and contains only keys present in both:
// additions (head-only) and deletions (base-only) are not mutations and
// are excluded entirely. A nil base is treated as empty.
func Diff(base, head *changelog.Snapshot) []Change {
	if base == nil {
		return nil
	}
	var out []Change
	for _, k := range head.Keys() {
		headRec, _ := head.Lookup(k)
		baseRec, ok := base.Lookup(k)
		if !ok {
			continue
		}
		out = append(out, Change{
			Key:     k,
			Head:    headRec,
			Changed: baseRec.Digest != headRec.Digest,
		})
	}
	return out
}
